package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/abhinav/shelltest/internal/shell"
	"github.com/joho/godotenv"
	"github.com/mattn/go-shellwords"
)

// Environment variables consulted for the shell under test.
const (
	_shellEnv = "SQLITE_EXEC"
	_flagsEnv = "SQLITE_FLAGS"
)

const (
	_defaultShell = "./scripts/turso-sqlite3"
	_defaultFlags = "-q"
)

// defaultConfig returns the lowest-priority configuration layer.
// namedShell reports whether the shell was picked with -shell or the
// config file. Shells from the environment or the default still get -q.
func defaultConfig(namedShell bool) *config {
	def := config{
		Shell:    _defaultShell,
		Parallel: 1,
		Timeout:  shell.DefaultTimeout,
	}
	if !namedShell {
		def.Flags = _defaultFlags
	}
	return &def
}

type config struct {
	Shell    string        `toml:"shell"`
	Flags    string        `toml:"flags"`
	Parallel int           `toml:"parallel"`
	Timeout  time.Duration `toml:"timeout"`
	LogFile  string        `toml:"log"`
	Verbose  bool          `toml:"verbose"`

	// Not read from the config file.
	ConfigFile string `toml:"-"`
}

func newConfig(flag *flag.FlagSet) *config {
	var c config
	c.RegisterFlags(flag)
	return &c
}

// RegisterFlags registers the configuration's flags with the flag set.
func (c *config) RegisterFlags(flag *flag.FlagSet) {
	// No help here because we put it all in _usage.
	flag.StringVar(&c.Shell, "shell", "", "")
	flag.StringVar(&c.Flags, "flags", "", "")
	flag.StringVar(&c.ConfigFile, "config", "", "")
	flag.IntVar(&c.Parallel, "parallel", 0, "")
	flag.DurationVar(&c.Timeout, "timeout", 0, "")
	flag.StringVar(&c.LogFile, "log", "", "")
	flag.BoolVar(&c.Verbose, "verbose", false, "")
}

// Args rebuilds a list of arguments from which this configuration may be
// parsed.
func (c *config) Args() []string {
	var args []string
	if len(c.Shell) > 0 {
		args = append(args, "-shell", c.Shell)
	}
	if len(c.Flags) > 0 {
		args = append(args, "-flags", c.Flags)
	}
	if len(c.ConfigFile) > 0 {
		args = append(args, "-config", c.ConfigFile)
	}
	if c.Parallel > 0 {
		args = append(args, "-parallel", strconv.Itoa(c.Parallel))
	}
	if c.Timeout > 0 {
		args = append(args, "-timeout", c.Timeout.String())
	}
	if len(c.LogFile) > 0 {
		args = append(args, "-log", c.LogFile)
	}
	if c.Verbose {
		args = append(args, "-verbose")
	}
	return args
}

// FillFrom updates this config object, filling empty values with values from
// the provided struct but not overwriting those that are already set.
func (c *config) FillFrom(o *config) {
	if len(c.Shell) == 0 {
		c.Shell = o.Shell
	}
	if len(c.Flags) == 0 {
		c.Flags = o.Flags
	}
	if len(c.ConfigFile) == 0 {
		c.ConfigFile = o.ConfigFile
	}
	if c.Parallel == 0 {
		c.Parallel = o.Parallel
	}
	if c.Timeout == 0 {
		c.Timeout = o.Timeout
	}
	if len(c.LogFile) == 0 {
		c.LogFile = o.LogFile
	}
	c.Verbose = c.Verbose || o.Verbose
}

// ShellArgs splits Flags into arguments for the shell,
// honoring shell quoting rules.
func (c *config) ShellArgs() ([]string, error) {
	if len(strings.TrimSpace(c.Flags)) == 0 {
		return nil, nil
	}

	args, err := shellwords.Parse(c.Flags)
	if err != nil {
		return nil, fmt.Errorf("parse shell flags %q: %w", c.Flags, err)
	}
	return args, nil
}

// BuildLogWriter opens the log file, if any.
// It falls back to stderr if no log file was requested.
func (c *config) BuildLogWriter(stderr io.Writer) (w io.Writer, closeLog func() error, err error) {
	if len(c.LogFile) == 0 {
		return stderr, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log %q: %w", c.LogFile, err)
	}
	return f, f.Close, nil
}

// loadConfigFile reads a TOML configuration file.
// Unknown keys are rejected.
func loadConfigFile(path string) (*config, error) {
	var cfg config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("load config %q: unknown keys: %v", path, strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// envConfig builds a configuration from the environment.
// Variables from the .env file at dotenv apply only if the environment
// doesn't already set them.
func envConfig(getenv func(string) string, dotenv string) (*config, error) {
	fileEnv := make(map[string]string)
	if len(dotenv) > 0 {
		env, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			fileEnv = env
		case errors.Is(err, fs.ErrNotExist):
			// optional
		default:
			return nil, fmt.Errorf("load %v: %w", dotenv, err)
		}
	}

	lookup := func(k string) string {
		if v := getenv(k); len(v) > 0 {
			return v
		}
		return fileEnv[k]
	}

	return &config{
		Shell: lookup(_shellEnv),
		Flags: lookup(_flagsEnv),
	}, nil
}
