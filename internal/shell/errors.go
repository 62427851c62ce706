package shell

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhinav/shelltest/internal/proc"
	"github.com/rivo/uniseg"
)

// ErrClosed is returned by calls made after Quit.
var ErrClosed = errors.New("shell driver is closed")

// Output longer than this many characters is shortened in error messages.
// The full output remains available on the error values.
const _maxOutput = 2000

// ShellFaultError indicates that the shell closed its stderr while a
// command was running. This usually means that it crashed.
type ShellFaultError struct {
	// Output collected before the fault.
	Output string
}

func (e *ShellFaultError) Error() string {
	return withOutput("shell closed stderr unexpectedly", e.Output)
}

// TimeoutError indicates that a command did not complete in time.
type TimeoutError struct {
	Command string
	Timeout time.Duration

	// Output collected before the timeout.
	Output string
}

func (e *TimeoutError) Error() string {
	return withOutput(fmt.Sprintf("%q did not complete within %v", e.Command, e.Timeout), e.Output)
}

// AssertionError indicates that the output of a command did not satisfy
// a predicate. This is a test failure, not a fault: the driver is still
// usable.
type AssertionError struct {
	Command string
	Output  string
	Detail  string
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("unexpected output for %q", e.Command)
	if len(e.Detail) > 0 {
		msg += ": " + e.Detail
	}
	return withOutput(msg, e.Output)
}

// IsFault reports whether err leaves the driver unusable.
func IsFault(err error) bool {
	var (
		shellErr   *ShellFaultError
		timeoutErr *TimeoutError
		pipeErr    *proc.BrokenPipeError
	)
	return errors.As(err, &shellErr) ||
		errors.As(err, &timeoutErr) ||
		errors.As(err, &pipeErr)
}

func withOutput(msg, output string) string {
	if len(output) == 0 {
		return msg + " (no output)"
	}
	return msg + "\noutput:\n" + truncate(output, _maxOutput)
}

// truncate shortens s to at most n user-perceived characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s // can't have more characters than bytes
	}

	var (
		b   strings.Builder
		gr  = uniseg.NewGraphemes(s)
		cnt int
	)
	for gr.Next() {
		if cnt == n {
			fmt.Fprintf(&b, "... (%d bytes truncated)", len(s)-b.Len())
			break
		}
		b.WriteString(gr.Str())
		cnt++
	}
	return b.String()
}
