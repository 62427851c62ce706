package fixture

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/multierr"
)

// TempPath returns a new, unused database path inside dir.
// The file is not created.
func TempPath(dir string) string {
	return filepath.Join(dir, "shelltest-"+uuid.NewString()+".db")
}

// Characters that end or escape the path of an SQLite URI filename.
var _uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// open opens the database at path.
// If readOnly is set, the database must already exist.
func open(path string, readOnly bool) (*sql.DB, error) {
	q := make(url.Values)
	if readOnly {
		q.Set("mode", "ro")
	}
	return sql.Open("sqlite3", dsn(path, q))
}

func dsn(path string, q url.Values) string {
	u := url.URL{
		Scheme:   "file",
		Opaque:   _uriPath.Replace(path),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Clone copies the database at src into a new database at dst.
// src is not modified. dst must not exist.
func Clone(src, dst string) (err error) {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("clone %v: %v already exists", src, dst)
	}

	db, err := open(src, true /* readOnly */)
	if err != nil {
		return fmt.Errorf("open %v: %w", src, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	if _, err := db.Exec("VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("clone %v to %v: %w", src, dst, err)
	}
	return nil
}

// Remove deletes the database at path along with its write-ahead log and
// shared memory files. Files that don't exist are ignored.
func Remove(path string) error {
	var err error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if rerr := os.Remove(p); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = multierr.Append(err, rerr)
		}
	}
	return err
}

// Integrity runs SQLite's integrity check against the database at path.
// This verifies that a database written by a shell under test is readable
// by SQLite.
func Integrity(path string) (err error) {
	db, err := open(path, true /* readOnly */)
	if err != nil {
		return fmt.Errorf("open %v: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	rows, err := db.Query("PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("check %v: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))

	var problems []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return fmt.Errorf("check %v: %w", path, err)
		}
		if msg != "ok" {
			problems = append(problems, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("check %v: %w", path, err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("database %v is corrupt:\n%v", path, strings.Join(problems, "\n"))
	}
	return nil
}

// Count reports the number of rows in a table of the database at path.
func Count(path, table string) (n int, err error) {
	db, err := open(path, true /* readOnly */)
	if err != nil {
		return 0, fmt.Errorf("open %v: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	query := "SELECT count(*) FROM " + quoteIdent(table)
	if err := db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %v in %v: %w", table, path, err)
	}
	return n, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
