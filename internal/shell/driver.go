package shell

// Driver is the subset of ShellDriver's API that consumers depend on.
type Driver interface {
	// Execute runs a command and returns its cleaned output.
	Execute(command string) (string, error)

	// Fire writes a command without waiting for it to complete.
	Fire(command string) error

	// Quit asks the shell to exit and terminates it.
	Quit() error
}

//go:generate mockgen -destination shelltest/mock_driver.go -package shelltest github.com/abhinav/shelltest/internal/shell Driver

var _ Driver = (*ShellDriver)(nil)
