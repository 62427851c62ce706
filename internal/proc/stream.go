package proc

import (
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// ChunkSize is the size of a single read from the child's output.
const ChunkSize = 4096

// Stream identifies one of the child's output streams.
type Stream uint8

// Output streams of the child process.
const (
	Stdout Stream = 1 << iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "Stream(" + strconv.Itoa(int(s)) + ")"
	}
}

// Streams is a set of output streams.
type Streams uint8

// Has reports whether the set includes the given stream.
func (ss Streams) Has(s Stream) bool {
	return ss&Streams(s) != 0
}

func (ss Streams) String() string {
	var names []string
	for _, s := range []Stream{Stdout, Stderr} {
		if ss.Has(s) {
			names = append(names, s.String())
		}
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// chunk is the result of a single read from a pipe.
// Exactly one of data or err is set.
type chunk struct {
	data []byte
	err  error
}

// pipeReader reads from one of the child's output pipes in the background,
// handing each read to the session over an unbuffered channel.
type pipeReader struct {
	r      io.ReadCloser
	chunks chan chunk
	quit   <-chan struct{} // closed when the session is torn down

	pending *chunk // received but not yet consumed
	done    bool   // end of stream consumed
}

func newPipeReader(r io.ReadCloser, quit <-chan struct{}) *pipeReader {
	return &pipeReader{
		r:      r,
		chunks: make(chan chunk),
		quit:   quit,
	}
}

func (p *pipeReader) run() {
	buf := make([]byte, ChunkSize)
	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !p.send(chunk{data: data}) {
				return
			}
		}
		if err != nil {
			p.send(chunk{err: err})
			return
		}
	}
}

func (p *pipeReader) send(c chunk) bool {
	select {
	case p.chunks <- c:
		return true
	case <-p.quit:
		return false
	}
}

// take consumes the pending chunk, blocking for one if none is pending.
func (p *pipeReader) take() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}

	var c chunk
	if p.pending != nil {
		c = *p.pending
		p.pending = nil
	} else {
		select {
		case c = <-p.chunks:
		case <-p.quit:
			c = chunk{err: fs.ErrClosed}
		}
	}

	if c.err != nil {
		p.done = true
		if errors.Is(c.err, io.EOF) || errors.Is(c.err, fs.ErrClosed) {
			return nil, io.EOF
		}
		return nil, c.err
	}
	return c.data, nil
}
