package litesh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/mattn/go-sqlite3"
)

// directive runs a dot-directive like ".open test.db".
func (sh *Shell) directive(line string) error {
	args, err := shellwords.Parse(line)
	if err != nil || len(args) == 0 {
		fmt.Fprintf(sh.stderr, "Error: invalid directive %q\n", line)
		return nil
	}

	name, args := strings.TrimPrefix(args[0], "."), args[1:]
	sh.log.Debugf("directive: %v %q", name, args)

	switch name {
	case "quit", "exit":
		return errQuit

	case "open":
		if len(args) != 1 {
			return sh.usage("open FILE")
		}
		if err := sh.open(args[0]); err != nil {
			fmt.Fprintf(sh.stderr, "Error: %v\n", err)
		}

	case "nullvalue":
		if len(args) != 1 {
			return sh.usage("nullvalue STRING")
		}
		sh.nullValue = args[0]

	case "headers":
		if len(args) != 1 {
			return sh.usage("headers on|off")
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			fmt.Fprintf(sh.stderr, "Error: %v\n", err)
			return nil
		}
		sh.headers = on

	case "output":
		switch {
		case len(args) == 0, args[0] == "stdout":
			if err := sh.resetOutput(); err != nil {
				fmt.Fprintf(sh.stderr, "Error: %v\n", err)
			}
		case len(args) == 1:
			if err := sh.setOutput(args[0]); err != nil {
				fmt.Fprintf(sh.stderr, "Error: cannot open %q: %v\n", args[0], err)
			}
		default:
			return sh.usage("output [FILE]")
		}

	case "show":
		sh.show()

	case "vfslist":
		// go-sqlite3 doesn't expose the VFS registry.
		// These are the ones compiled into every unix build.
		for _, vfs := range []string{"unix", "unix-dotfile", "unix-excl", "unix-none", "memdb"} {
			fmt.Fprintln(sh.out, vfs)
		}

	case "load":
		if len(args) < 1 || len(args) > 2 {
			return sh.usage("load FILE [ENTRY]")
		}
		if err := sh.load(args...); err != nil {
			fmt.Fprintf(sh.stderr, "Error: %v\n", err)
		}

	default:
		fmt.Fprintf(sh.stderr, "Error: unknown command or invalid arguments: %q\n", name)
	}
	return nil
}

func (sh *Shell) usage(msg string) error {
	fmt.Fprintf(sh.stderr, "Usage: .%v\n", msg)
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("not a boolean value: %q", s)
	}
	return b, nil
}

func (sh *Shell) setOutput(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sh.resetOutput(); err != nil {
		f.Close()
		return err
	}
	sh.out = f
	sh.outFile = f
	sh.outName = path
	return nil
}

func (sh *Shell) resetOutput() error {
	var err error
	if sh.outFile != nil {
		err = sh.outFile.Close()
	}
	sh.out = sh.stdout
	sh.outFile = nil
	sh.outName = "stdout"
	return err
}

func (sh *Shell) show() {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	for _, kv := range [][2]string{
		{"echo", "off"},
		{"headers", onOff(sh.headers)},
		{"mode", "list"},
		{"nullvalue", strconv.Quote(sh.nullValue)},
		{"output", sh.outName},
		{"colseparator", `"|"`},
		{"rowseparator", `"\n"`},
		{"filename", sh.filename},
	} {
		fmt.Fprintf(sh.out, "%12s: %s\n", kv[0], kv[1])
	}
}

// load loads a SQLite extension into the current connection.
func (sh *Shell) load(args ...string) error {
	path, entry := args[0], ""
	if len(args) > 1 {
		entry = args[1]
	}

	conn, err := sh.db.Conn(context.Background())
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		c, ok := dc.(*sqlite3.SQLiteConn)
		if !ok {
			return errors.New("extensions are not supported")
		}
		if err := c.LoadExtension(path, entry); err != nil {
			return fmt.Errorf("load %v: %w", path, err)
		}
		return nil
	})
}
