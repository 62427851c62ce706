// shelltest runs declarative test scenarios against a line-oriented
// database shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/abhinav/shelltest/internal/log"
	"github.com/abhinav/shelltest/internal/paniclog"
	"github.com/abhinav/shelltest/internal/scenario"
	"github.com/abhinav/shelltest/internal/shell"
	"go.uber.org/multierr"
)

var _version = "dev"

var _main = mainCmd{
	Stdout: os.Stdout,
	Stderr: os.Stderr,
	Getenv: os.Getenv,
	Dotenv: ".env",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &_main, os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(_main.Stderr, err)
		}
		os.Exit(1)
	}
}

// errTestsFailed is returned when some tests failed.
// The failures have already been reported.
var errTestsFailed = errors.New("tests failed")

const _name = "shelltest"

const _usage = `usage: %v [options] FILE...

Runs the test scenarios defined in the given YAML files against a
line-oriented database shell.

The following flags are available:

	-shell PATH
		path to the shell under test.
		Defaults to $SQLITE_EXEC, or ./scripts/turso-sqlite3.
	-flags ARGS
		arguments for the shell, split with shell quoting rules.
			-flags '-q -m list'
		Defaults to $SQLITE_FLAGS, or -q unless the shell was named
		with -shell or the config file.
	-config FILE
		TOML file to read defaults for these flags from.
	-parallel N
		number of files to run at the same time.
		Defaults to 1.
	-timeout DURATION
		how long to wait for each command to complete.
		Defaults to 10s.
	-log FILE
		file to write logs to.
		Uses stderr by default.
	-verbose
		log more output.
	-version
		display version information.

SQLITE_EXEC and SQLITE_FLAGS may also be set in a .env file in the current
directory.
`

type mainCmd struct {
	Stdout io.Writer
	Stderr io.Writer

	Getenv func(string) string // == os.Getenv

	// Path to an optional .env file.
	Dotenv string

	// Overrides how tests are run.
	runFiles runFilesFunc
}

type runFilesFunc func(context.Context, *scenario.Runner, []string, int) ([]scenario.Result, error)

func runFiles(ctx context.Context, r *scenario.Runner, paths []string, parallel int) ([]scenario.Result, error) {
	return r.RunFiles(ctx, paths, parallel)
}

func run(ctx context.Context, cmd *mainCmd, args []string) error {
	flag := flag.NewFlagSet(_name, flag.ContinueOnError)
	flag.SetOutput(cmd.Stderr)
	flag.Usage = func() {
		name := flag.Name()
		fmt.Fprintf(flag.Output(), _usage, name)
	}
	cfg := newConfig(flag)
	version := flag.Bool("version", false, "")
	if err := flag.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(cmd.Stdout, "shelltest version %v\n", _version)
		return nil
	}

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		return errors.New("no scenario files specified")
	}

	return cmd.Run(ctx, cfg, files)
}

func (cmd *mainCmd) init() {
	if cmd.runFiles == nil {
		cmd.runFiles = runFiles
	}
}

// Run runs the scenario files with the given configuration.
// Values missing from cfg are filled from the environment,
// the config file, and the defaults, in that order.
func (cmd *mainCmd) Run(ctx context.Context, cfg *config, files []string) (err error) {
	cmd.init()

	namedShell := len(cfg.Shell) > 0

	envCfg, err := envConfig(cmd.Getenv, cmd.Dotenv)
	if err != nil {
		return err
	}
	cfg.FillFrom(envCfg)

	if len(cfg.ConfigFile) > 0 {
		fileCfg, err := loadConfigFile(cfg.ConfigFile)
		if err != nil {
			return err
		}
		if len(cfg.Shell) == 0 && len(fileCfg.Shell) > 0 {
			namedShell = true
		}
		cfg.FillFrom(fileCfg)
	}
	cfg.FillFrom(defaultConfig(namedShell))

	logW, closeLog, err := cfg.BuildLogWriter(cmd.Stderr)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(closeLog))

	logger := log.New(logW)
	if cfg.Verbose {
		logger = logger.WithLevel(log.Debug)
	}
	if isTerminal(logW) {
		logger = logger.WithColor()
	}
	defer paniclog.Recover(&err, logger)

	shellArgs, err := cfg.ShellArgs()
	if err != nil {
		return err
	}

	runner := scenario.Runner{
		Shell: shell.Config{
			Path:    cfg.Shell,
			Args:    shellArgs,
			Timeout: cfg.Timeout,
		},
		Log: logger.WithName("scenario"),
	}
	logger.Debug("running", "files", files, "shell", &runner.Shell, "parallel", cfg.Parallel)

	results, err := cmd.runFiles(ctx, &runner, files, cfg.Parallel)
	if err != nil {
		return err
	}

	if sum := report(cmd.Stdout, results); sum.Failed > 0 {
		return errTestsFailed
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
