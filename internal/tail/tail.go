// Package tail follows a file that another process is still writing to.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	_defaultDelay      = 100 * time.Millisecond
	_defaultBufferSize = 32 * 1024 // 32kB
)

// Follower copies the contents of a file into memory as they are written.
// The file does not need to exist when the Follower starts.
//
// The zero value is not ready to use: set Path and call Start.
type Follower struct {
	Path string // file to follow (required)

	// Maximum delay between retries. If the end of the file is reached,
	// we'll wait up to this much time before trying again. Defaults to 100
	// milliseconds.
	Delay time.Duration

	// Size of the copy buffer. Defaults to 32kB.
	BufferSize int

	Clock clock.Clock

	mu  sync.RWMutex
	buf bytes.Buffer

	err        error
	buffer     []byte
	changed    chan struct{} // has an item if buf changed since last check
	quit, done chan struct{}
}

// Start begins polling the file and copying its contents until an error is
// encountered or Stop is called. If the file doesn't exist yet or reaches
// EOF, Follower will try again after some delay (configurable via the Delay
// parameter).
//
// Start returns immediately.
func (f *Follower) Start() {
	if f.Delay == 0 {
		f.Delay = _defaultDelay
	}
	if f.BufferSize == 0 {
		f.BufferSize = _defaultBufferSize
	}
	if f.Clock == nil {
		f.Clock = clock.New()
	}

	f.buffer = make([]byte, f.BufferSize)
	f.changed = make(chan struct{}, 1)
	f.quit = make(chan struct{})
	f.done = make(chan struct{})

	go f.run()
}

// Stop tells Follower to stop copying text. It blocks until it has cleaned
// up the background job. Returns errors encountered during run, if any.
func (f *Follower) Stop() error {
	close(f.quit)

	return f.Wait()
}

// Wait waits until the follower stops from an error or from Stop being
// called. Returns the error, if any.
func (f *Follower) Wait() error {
	<-f.done
	return f.err
}

// String returns the contents of the file read so far.
func (f *Follower) String() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.buf.String()
}

// WaitUntilContains blocks until the file contains the given text,
// the follower stops, or the context ends.
func (f *Follower) WaitUntilContains(ctx context.Context, want string) error {
	for {
		if strings.Contains(f.String(), want) {
			return nil
		}

		select {
		case <-f.changed:
		case <-f.done:
			if strings.Contains(f.String(), want) {
				return nil
			}
			if f.err != nil {
				return fmt.Errorf("follow %v: %w", f.Path, f.err)
			}
			return fmt.Errorf("follow %v: stopped before %q appeared", f.Path, want)
		case <-ctx.Done():
			return fmt.Errorf("%v does not contain %q: %w\ncontents:\n%s",
				f.Path, want, ctx.Err(), f.String())
		}
	}
}

func (f *Follower) write(bs []byte) {
	f.mu.Lock()
	f.buf.Write(bs)
	f.mu.Unlock()
	f.notify()
}

func (f *Follower) reset() {
	f.mu.Lock()
	f.buf.Reset()
	f.mu.Unlock()
	f.notify()
}

func (f *Follower) notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func (f *Follower) run() {
	defer close(f.done)

	ticker := f.Clock.Ticker(f.Delay)
	defer ticker.Stop()

	var (
		file *os.File
		read int64 // bytes read from file
	)
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for {
		if file == nil {
			var err error
			file, err = os.Open(f.Path)
			switch {
			case err == nil:
				read = 0
			case errors.Is(err, fs.ErrNotExist):
				// Not created yet.
				file = nil
			default:
				f.err = err
				return
			}
		}

		if file != nil {
			// Start over if the file was truncated.
			if fi, err := file.Stat(); err == nil && fi.Size() < read {
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					f.err = err
					return
				}
				read = 0
				f.reset()
			}

			n, err := file.Read(f.buffer)
			if n > 0 {
				read += int64(n)
				f.write(f.buffer[:n])
				// There may be more bytes still to read.
				continue
			}

			switch {
			case err == nil || errors.Is(err, io.EOF):
				// Caught up. Wait for more below.
			default:
				// Something went wrong. Record and die.
				f.err = err
				return
			}
		}

		select {
		case <-f.quit:
			return
		case <-ticker.C:
		}
	}
}
