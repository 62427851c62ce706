package shellopt

import (
	"log/slog"

	"github.com/abhinav/shelltest/internal/shell"
)

// Settings reports the state of a shell as printed by .show.
type Settings struct {
	// Database file the shell has open.
	Filename string

	// Output mode, e.g. "list".
	Mode string

	// Text printed in place of NULL.
	NullValue string

	// Destination of query output: "stdout" or a file name.
	Output string

	Headers bool
	Echo    bool
}

func (s *Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("filename", s.Filename),
		slog.String("mode", s.Mode),
		slog.String("nullvalue", s.NullValue),
		slog.String("output", s.Output),
		slog.Bool("headers", s.Headers),
		slog.Bool("echo", s.Echo),
	)
}

// Inspect asks the shell for its current settings.
func Inspect(driver shell.Driver) (*Settings, error) {
	var s Settings
	l := Loader{Shell: driver}
	l.StringVar(&s.Filename, "filename")
	l.StringVar(&s.Mode, "mode")
	l.StringVar(&s.NullValue, "nullvalue")
	l.StringVar(&s.Output, "output")
	l.BoolVar(&s.Headers, "headers")
	l.BoolVar(&s.Echo, "echo")
	err := l.Load()
	return &s, err
}
