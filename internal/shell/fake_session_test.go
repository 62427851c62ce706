package shell

import (
	"context"
	"io"

	"github.com/abhinav/shelltest/internal/envtest"
	"github.com/abhinav/shelltest/internal/proc"
)

// event is a single read made available by fakeSession.
type event struct {
	stream proc.Stream
	data   string
	eof    bool
}

func stdout(s string) event    { return event{stream: proc.Stdout, data: s} }
func stderr(s string) event    { return event{stream: proc.Stderr, data: s} }
func eof(st proc.Stream) event { return event{stream: st, eof: true} }

// fakeSession is a scripted session.
//
// Every Write is recorded and passed to OnWrite. Events returned by OnWrite
// are queued and handed out one at a time by ReadReady and ReadChunk.
// ReadReady blocks until the context ends if nothing is queued.
type fakeSession struct {
	t interface{ Errorf(string, ...any) } // *testing.T or *rapid.T

	OnWrite  func(text string) []event
	WriteErr error

	Writes     []string
	Terminated int

	queue []event
	done  chan struct{}
}

var _ session = (*fakeSession)(nil)

func newFakeSession(t interface{ Errorf(string, ...any) }) *fakeSession {
	return &fakeSession{t: t, done: make(chan struct{})}
}

// Reply configures the session to emit the given events when it sees the
// sentinel query.
func (f *fakeSession) Reply(events ...event) *fakeSession {
	query := sentinelQuery(DefaultSentinel)
	f.OnWrite = func(text string) []event {
		if text == query {
			return events
		}
		return nil
	}
	return f
}

// Exit marks the process as exited.
func (f *fakeSession) Exit() {
	close(f.done)
}

func (f *fakeSession) Write(text string) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Writes = append(f.Writes, text)
	if f.OnWrite != nil {
		f.queue = append(f.queue, f.OnWrite(text)...)
	}
	return nil
}

func (f *fakeSession) ReadReady(ctx context.Context) (proc.Streams, error) {
	if len(f.queue) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return proc.Streams(f.queue[0].stream), nil
}

func (f *fakeSession) ReadChunk(st proc.Stream) ([]byte, error) {
	if len(f.queue) == 0 || f.queue[0].stream != st {
		f.t.Errorf("unexpected read from %v", st)
		return nil, io.ErrUnexpectedEOF
	}

	ev := f.queue[0]
	f.queue = f.queue[1:]
	if ev.eof {
		return nil, io.EOF
	}
	return []byte(ev.data), nil
}

func (f *fakeSession) Terminate() error {
	f.Terminated++
	return nil
}

func (f *fakeSession) Done() <-chan struct{} {
	return f.done
}

// fakeSystem returns a system that starts the given session
// and records the configuration it was started with.
func fakeSystem(sess session, got *proc.Config) *system {
	return &system{
		Environ: envtest.MustPairs("HOME", "/home/user").Environ,
		Start: func(cfg proc.Config) (session, error) {
			if got != nil {
				*got = cfg
			}
			return sess, nil
		},
	}
}
