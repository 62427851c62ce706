package shell

import (
	"log/slog"
	"strings"
	"time"

	"github.com/abhinav/shelltest/internal/log"
	"github.com/benbjohnson/clock"
)

// Defaults for Config.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultQuitDelay = 300 * time.Millisecond
	DefaultSentinel  = "END_OF_RESULT"
)

// Config specifies how to start a shell.
type Config struct {
	// Path to the shell executable. Required.
	Path string

	// Arguments for the shell, e.g. the database file and flags like -q.
	Args []string

	// Additional "KEY=value" environment variables for the shell.
	// These are added on top of the environment of this process.
	Env []string

	// Commands written to the shell as soon as it starts,
	// without waiting for their output.
	Seed string

	// Working directory for the shell.
	Dir string

	// Maximum time to wait for a command to complete.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// Time Quit waits for the shell to exit on its own
	// before terminating it.
	// Defaults to DefaultQuitDelay.
	QuitDelay time.Duration

	// Value printed after each command to detect completion.
	// This must never appear at the end of a legitimate result.
	// Defaults to DefaultSentinel.
	Sentinel string

	// Clock used for timeouts. Defaults to the real clock.
	Clock clock.Clock

	// Log receives the commands and their output at debug level.
	Log *log.Logger
}

func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.QuitDelay == 0 {
		c.QuitDelay = DefaultQuitDelay
	}
	if len(c.Sentinel) == 0 {
		c.Sentinel = DefaultSentinel
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Log == nil {
		c.Log = log.Discard
	}
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", c.Path),
		log.OmitEmpty(slog.String, "args", strings.Join(c.Args, " ")),
		log.OmitEmpty(slog.String, "env", strings.Join(c.Env, " ")),
		log.OmitEmpty(slog.String, "dir", c.Dir),
		log.OmitEmpty(slog.Duration, "timeout", c.Timeout),
	)
}

// sentinelQuery is the query that prints the sentinel.
func sentinelQuery(sentinel string) string {
	return "SELECT '" + strings.ReplaceAll(sentinel, "'", "''") + "';"
}
