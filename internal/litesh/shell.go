// Package litesh implements a minimal line-oriented SQLite shell.
//
// It reads SQL statements and dot-directives from its input, prints query
// results one row per line with columns separated by "|", and reports errors
// on its error output. It speaks the same protocol as the shells that
// shelltest drives, and is used as a stand-in for them.
package litesh

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abhinav/shelltest/internal/log"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/multierr"
)

// MemoryDB is the name of the transient in-memory database.
const MemoryDB = ":memory:"

// Config configures a Shell.
type Config struct {
	// Database to open at startup. Defaults to MemoryDB.
	Database string

	Stdout io.Writer // required
	Stderr io.Writer // required

	// Log receives debug messages. Defaults to discarding them.
	Log *log.Logger
}

// Shell is a line-oriented SQLite shell.
type Shell struct {
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger

	db       *sql.DB
	filename string

	out     io.Writer // destination of query results
	outFile *os.File  // set if out is a file
	outName string

	nullValue string
	headers   bool

	split splitter
}

// New builds a shell and opens its database.
func New(cfg Config) (*Shell, error) {
	if cfg.Log == nil {
		cfg.Log = log.Discard
	}
	if len(cfg.Database) == 0 {
		cfg.Database = MemoryDB
	}

	sh := &Shell{
		stdout:  cfg.Stdout,
		stderr:  cfg.Stderr,
		log:     cfg.Log,
		out:     cfg.Stdout,
		outName: "stdout",
	}
	if err := sh.open(cfg.Database); err != nil {
		return nil, err
	}
	return sh, nil
}

// open replaces the current database with the one at path.
// The current database is kept if path can't be opened.
func (sh *Shell) open(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("unable to open database %q: %w", path, err)
	}
	// Every connection to :memory: is a different database.
	// Stick to one connection so that state carries across statements.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("unable to open database %q: %w", path, err)
	}

	if sh.db != nil {
		if err := sh.db.Close(); err != nil {
			sh.log.Debugf("close %v: %v", sh.filename, err)
		}
	}
	sh.db = db
	sh.filename = path
	sh.log.Debugf("opened %v", path)
	return nil
}

// Close releases the database and closes the output file, if any.
func (sh *Shell) Close() error {
	err := sh.resetOutput()
	if sh.db != nil {
		err = multierr.Append(err, sh.db.Close())
	}
	return err
}

// errQuit is returned by directives to stop the shell.
var errQuit = errors.New("quit")

// Run reads and executes input until EOF or .quit.
// Errors in individual statements are reported on stderr and do not stop
// the shell.
func (sh *Shell) Run(r io.Reader) error {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scan.Scan() {
		if err := sh.Line(scan.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
	return scan.Err()
}

// Line executes a single line of input.
func (sh *Shell) Line(line string) error {
	if !sh.split.Pending() && strings.HasPrefix(strings.TrimSpace(line), ".") {
		return sh.directive(strings.TrimSpace(line))
	}

	for _, stmt := range sh.split.Feed(line) {
		if err := sh.exec(stmt); err != nil {
			fmt.Fprintf(sh.stderr, "Parse error: %v\n", err)
		}
	}
	return nil
}

func (sh *Shell) exec(stmt string) (err error) {
	sh.log.Debugf("exec: %s", stmt)

	rows, err := sh.db.Query(stmt)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	if sh.headers && len(cols) > 0 {
		fmt.Fprintln(sh.out, strings.Join(cols, "|"))
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var line strings.Builder
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		line.Reset()
		for i, v := range values {
			if i > 0 {
				line.WriteByte('|')
			}
			line.WriteString(formatValue(v, sh.nullValue))
		}
		line.WriteByte('\n')
		io.WriteString(sh.out, line.String())
	}
	return rows.Err()
}
