// litesh is a minimal line-oriented SQLite shell.
//
// It reads SQL statements and dot-directives from stdin, and prints results
// one row per line. It's a stand-in for the shells driven by shelltest.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/abhinav/shelltest/internal/litesh"
	"github.com/abhinav/shelltest/internal/log"
	"github.com/abhinav/shelltest/internal/paniclog"
	"go.uber.org/multierr"
)

var _version = "dev"

func main() {
	cmd := mainCmd{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := cmd.Run(os.Args[1:]); err != nil && err != flag.ErrHelp {
		fmt.Fprintln(cmd.Stderr, err)
		os.Exit(1)
	}
}

type mainCmd struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

const _usage = `usage: %v [options] [DATABASE]

Runs SQL statements and dot-directives read from stdin against DATABASE.
Uses a transient in-memory database if DATABASE is unspecified.

The following flags are available:

	-q
		don't print the banner.
	-verbose
		log statements to stderr.
	-version
		display version information.
`

func (cmd *mainCmd) Run(args []string) (err error) {
	flag := flag.NewFlagSet("litesh", flag.ContinueOnError)
	flag.SetOutput(cmd.Stderr)
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), _usage, flag.Name())
	}
	quiet := flag.Bool("q", false, "")
	verbose := flag.Bool("verbose", false, "")
	version := flag.Bool("version", false, "")
	if err := flag.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(cmd.Stdout, "litesh version %v\n", _version)
		return nil
	}

	var database string
	switch args := flag.Args(); len(args) {
	case 0:
		database = litesh.MemoryDB
	case 1:
		database = args[0]
	default:
		return fmt.Errorf("unexpected arguments %q", args[1:])
	}

	logger := log.Discard
	if *verbose {
		logger = log.New(cmd.Stderr).WithLevel(log.Debug).WithName("litesh")
	}
	defer paniclog.Recover(&err, log.New(cmd.Stderr))

	sh, err := litesh.New(litesh.Config{
		Database: database,
		Stdout:   cmd.Stdout,
		Stderr:   cmd.Stderr,
		Log:      logger,
	})
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(sh))

	if !*quiet {
		fmt.Fprintf(cmd.Stdout, "litesh version %v\n", _version)
		if database == litesh.MemoryDB {
			fmt.Fprintln(cmd.Stdout, "Connected to a transient in-memory database.")
		}
	}

	return sh.Run(cmd.Stdin)
}
