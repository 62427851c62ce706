// Package paniclog turns panics into errors
// and records them with their stack traces.
package paniclog

import (
	"fmt"
	"runtime/debug"

	"github.com/abhinav/shelltest/internal/log"
	"go.uber.org/multierr"
)

// PanicError is an error built from a recovered panic.
type PanicError struct {
	Value any    // value passed to panic
	Stack []byte // stack of the panicking goroutine
}

func (e *PanicError) Error() string {
	switch v := e.Value.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("panic: %v", v)
	}
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Handle handles a panic value, logging it and its stack at error level.
// Returns the error version of the panic, if any.
func Handle(pval any, logger *log.Logger) error {
	if pval == nil {
		return nil
	}

	err := &PanicError{Value: pval, Stack: debug.Stack()}
	logger.Errorf("panic: %v\n%s", pval, err.Stack)
	return err
}

// Recover recovers a panic and appends it into the given error pointer.
// Errors already stored in the pointer are kept.
func Recover(err *error, logger *log.Logger) {
	if pval := recover(); pval != nil {
		*err = multierr.Append(*err, Handle(pval, logger))
	}
}
