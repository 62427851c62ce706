package proc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/abhinav/shelltest/internal/log"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

const _defaultKillDelay = 300 * time.Millisecond

// Config specifies how to start a child process.
type Config struct {
	// Path to the executable. Required.
	Path string

	// Arguments to pass to the executable, not including its name.
	Args []string

	// Environment of the child process in "KEY=value" form.
	// If nil, the child inherits the environment of this process.
	Env []string

	// Working directory of the child. Defaults to the current directory.
	Dir string

	// Text written to the child's stdin right after it starts.
	// A trailing newline is added.
	// Nothing waits for the child to process it.
	Seed string

	// How long Terminate waits after SIGTERM before sending SIGKILL.
	// Defaults to 300 milliseconds.
	KillDelay time.Duration

	// Clock used for timers. Defaults to the real clock.
	Clock clock.Clock

	// Log receives debug messages about the process lifecycle.
	// Defaults to discarding them.
	Log *log.Logger
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", c.Path),
		log.OmitEmpty(slog.String, "args", strings.Join(c.Args, " ")),
		log.OmitEmpty(slog.String, "dir", c.Dir),
		log.OmitEmpty(slog.Int, "seed", len(c.Seed)),
	)
}

// Session is a running child process with piped standard streams.
//
// A Session is owned by a single caller and is not safe for concurrent use,
// with the exception of Terminate, Done, Alive, and PID.
type Session struct {
	cmd   *exec.Cmd
	log   *log.Logger
	clock clock.Clock

	killDelay time.Duration

	stdin  *os.File
	stdout *pipeReader
	stderr *pipeReader

	alive   atomic.Bool
	quit    chan struct{} // closed by Terminate
	done    chan struct{} // closed when the process exits
	waitErr error         // set before done is closed

	termOnce sync.Once
	termErr  error
}

// Start spawns the process described by cfg.
//
// If the executable cannot be launched, Start returns a *SpawnError.
// If cfg.Seed is set and could not be written, the process is terminated and
// the write error is returned.
func Start(cfg Config) (_ *Session, err error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Log == nil {
		cfg.Log = log.Discard
	}
	if cfg.KillDelay == 0 {
		cfg.KillDelay = _defaultKillDelay
	}

	// We create the pipes ourselves instead of using cmd.StdoutPipe and
	// friends. exec.Cmd.Wait closes those as soon as the process exits,
	// which would discard anything the child wrote right before dying.
	var (
		files   []*os.File // closed if we fail
		pipeErr error
	)
	pipe := func() (r, w *os.File) {
		if pipeErr != nil {
			return nil, nil
		}
		r, w, pipeErr = os.Pipe()
		files = append(files, r, w)
		return r, w
	}
	stdinR, stdinW := pipe()
	stdoutR, stdoutW := pipe()
	stderrR, stderrW := pipe()
	defer func() {
		if err != nil {
			for _, f := range files {
				if f != nil {
					f.Close()
				}
			}
		}
	}()
	if pipeErr != nil {
		return nil, &SpawnError{Path: cfg.Path, Err: pipeErr}
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = cfg.Env
	cmd.Dir = cfg.Dir
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: cfg.Path, Err: err}
	}

	// The child has its own copies of these now. Dropping ours ensures
	// that we see EOF when the child goes away.
	for _, f := range []*os.File{stdinR, stdoutW, stderrW} {
		f.Close()
	}

	quit := make(chan struct{})
	s := &Session{
		cmd:       cmd,
		log:       cfg.Log,
		clock:     cfg.Clock,
		killDelay: cfg.KillDelay,
		stdin:     stdinW,
		stdout:    newPipeReader(stdoutR, quit),
		stderr:    newPipeReader(stderrR, quit),
		quit:      quit,
		done:      make(chan struct{}),
	}
	s.alive.Store(true)

	go s.stdout.run()
	go s.stderr.run()
	go s.wait()

	s.log.Debug("started", "pid", cmd.Process.Pid, "config", &cfg)

	if len(cfg.Seed) > 0 {
		if err := s.Write(cfg.Seed); err != nil {
			return nil, multierr.Append(err, s.Terminate())
		}
	}

	return s, nil
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	s.alive.Store(false)
	s.waitErr = err
	close(s.done)
	s.log.Debug("exited", "pid", s.PID(), "state", s.cmd.ProcessState.String())
}

// PID reports the process ID of the child.
func (s *Session) PID() int {
	return s.cmd.Process.Pid
}

// Alive reports whether the child is still running and the session has not
// been terminated.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Done returns a channel that is closed when the child exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the child exits and reports its exit status.
func (s *Session) Wait() error {
	<-s.done
	return s.waitErr
}

// Write writes text followed by a newline to the child's stdin.
// The pipe is unbuffered so the child sees the text immediately.
//
// Write fails with a *BrokenPipeError if stdin is closed.
func (s *Session) Write(text string) error {
	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, '\n')
	if _, err := s.stdin.Write(buf); err != nil {
		return &BrokenPipeError{Err: err}
	}
	return nil
}

// ReadReady blocks until at least one of stdout and stderr has data
// available or has reached end-of-file, and reports which ones are ready.
//
// ReadReady returns io.EOF if both streams have been fully consumed,
// and ctx.Err() if the context ends before a stream becomes ready.
func (s *Session) ReadReady(ctx context.Context) (Streams, error) {
	if ready := s.ready(); ready != 0 {
		return ready, nil
	}

	outC, errC := s.watch()
	if outC == nil && errC == nil {
		return 0, io.EOF
	}

	select {
	case c := <-outC:
		s.stdout.pending = &c
	case c := <-errC:
		s.stderr.pending = &c
	case <-s.quit:
		return 0, io.EOF
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	// Pick up the other stream too if it's ready right now.
	outC, errC = s.watch()
	select {
	case c := <-outC:
		s.stdout.pending = &c
	case c := <-errC:
		s.stderr.pending = &c
	default:
	}

	return s.ready(), nil
}

// ready reports the streams that have a chunk waiting to be consumed.
func (s *Session) ready() Streams {
	var ready Streams
	if s.stdout.pending != nil {
		ready |= Streams(Stdout)
	}
	if s.stderr.pending != nil {
		ready |= Streams(Stderr)
	}
	return ready
}

// watch returns the channels that ReadReady should select on.
// Streams that are exhausted or already have a pending chunk get a nil
// channel, which blocks forever in a select.
func (s *Session) watch() (outC, errC <-chan chunk) {
	if !s.stdout.done && s.stdout.pending == nil {
		outC = s.stdout.chunks
	}
	if !s.stderr.done && s.stderr.pending == nil {
		errC = s.stderr.chunks
	}
	return outC, errC
}

// ReadChunk returns the result of a single bounded read from the given
// stream: at most ChunkSize bytes. A zero-byte read is reported as io.EOF.
//
// ReadChunk should be called only for streams reported ready by ReadReady.
// Otherwise, it blocks until the stream has data.
func (s *Session) ReadChunk(stream Stream) ([]byte, error) {
	switch stream {
	case Stdout:
		return s.stdout.take()
	case Stderr:
		return s.stderr.take()
	default:
		return nil, errors.New("unknown stream " + stream.String())
	}
}

// Terminate stops the child and releases the pipes.
//
// It sends SIGTERM first, and SIGKILL if the child is still running after
// the kill delay. Terminate is idempotent and safe to call after the child
// has exited on its own.
func (s *Session) Terminate() error {
	s.termOnce.Do(func() {
		s.alive.Store(false)
		s.stop()
		close(s.quit)
		s.termErr = multierr.Combine(
			ignoreClosed(s.stdin.Close()),
			ignoreClosed(s.stdout.r.Close()),
			ignoreClosed(s.stderr.r.Close()),
		)
	})
	return s.termErr
}

func (s *Session) stop() {
	select {
	case <-s.done:
		return // already exited
	default:
	}

	pid := s.PID()
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err == nil {
		select {
		case <-s.done:
			s.log.Debug("terminated", "pid", pid)
			return
		case <-s.clock.After(s.killDelay):
		}
	}

	s.log.Debug("killing", "pid", pid, "delay", s.killDelay)
	_ = s.cmd.Process.Kill() // fails only if the process is already gone
	<-s.done
}

func ignoreClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
