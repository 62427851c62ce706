// Package proc owns a child process and its three standard streams.
//
// A [Session] provides raw, unbuffered writes to the child's stdin and a
// multiplexed wait across its stdout and stderr: [Session.ReadReady] blocks
// until either stream has data or has reached end-of-file, and
// [Session.ReadChunk] hands out one bounded read from a ready stream.
// Callers build their own protocol on top of this; see package shell.
package proc
