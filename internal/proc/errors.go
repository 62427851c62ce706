package proc

import "fmt"

// SpawnError indicates that the executable could not be launched.
// This is a setup error and should not be retried.
type SpawnError struct {
	Path string // executable that failed to start
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// BrokenPipeError indicates that the child's stdin is closed.
// The session cannot be used after this.
type BrokenPipeError struct {
	Err error
}

func (e *BrokenPipeError) Error() string {
	return fmt.Sprintf("write to stdin: broken pipe: %v", e.Err)
}

func (e *BrokenPipeError) Unwrap() error { return e.Err }
