// Package scenario defines shell tests declaratively in YAML files
// and runs them against a shell.
//
// A scenario file holds a list of tests. Each test starts a fresh shell,
// seeds it, and runs a sequence of steps against it:
//
//	tests:
//	  - name: arithmetic
//	    steps:
//	      - exec: "SELECT 1+1;"
//	        want: "2"
//
// Steps run in order and the test stops at the first failing step.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/abhinav/shelltest/internal/fixture"
	"github.com/abhinav/shelltest/internal/shell"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Seed names accepted by Test.Seed.
const (
	SeedDefault = "default" // users and products tables
	SeedBlobs   = "blobs"   // default, plus a table of zero-filled blobs
	SeedNone    = "none"    // nothing
)

// DefaultFileTimeout is how long a file step waits by default.
const DefaultFileTimeout = time.Second

// File is the top-level definition of tests in a scenario file.
type File struct {
	// Path to the file this was loaded from, if any.
	// Relative database paths are resolved against its directory.
	Path string `yaml:"-"`

	Tests []Test `yaml:"tests"`
}

// Test is a single test. It gets its own shell and temporary directory.
type Test struct {
	Name string `yaml:"name"`

	// Commands written to the shell when it starts.
	// This is either one of the Seed constants or literal SQL.
	// Defaults to SeedDefault.
	Seed string `yaml:"seed"`

	// Database to copy and open before running the test,
	// relative to the scenario file.
	// The test never modifies the original.
	Database string `yaml:"database"`

	Steps []Step `yaml:"steps"`
}

// Step is an interaction with the shell.
// Exactly one of Exec, Fire, and File must be set.
//
// The text of commands may refer to ${TESTDIR}, the temporary directory
// of the test, and ${DB}, the path of the copied database.
type Step struct {
	// Command to run, waiting for its output.
	Exec string `yaml:"exec"`

	// Output expected from Exec.
	// A trailing newline is ignored.
	Want *string `yaml:"want"`

	// Checks on the output of Exec.
	Expect *Expect `yaml:"expect"`

	// Command to run without waiting for its output.
	Fire string `yaml:"fire"`

	// File expected to be written by the shell.
	File *FileCheck `yaml:"file"`
}

// Expect is a set of checks on the output of a command.
// All of them must pass.
type Expect struct {
	Lines       *int   `yaml:"lines"`
	Contains    string `yaml:"contains"`
	NotContains string `yaml:"not_contains"`
	Matches     string `yaml:"matches"`
	Empty       bool   `yaml:"empty"`
}

// FileCheck waits for a file to contain some text.
type FileCheck struct {
	// Path to the file, relative to the test directory.
	Path string `yaml:"path"`

	Contains string `yaml:"contains"`

	// How long to wait for the text to show up.
	// Defaults to DefaultFileTimeout.
	Timeout time.Duration `yaml:"timeout"`
}

// ParseFile reads and validates the scenario file at path.
func ParseFile(path string) (*File, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse reads and validates a scenario file. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no tests found")
		}
		return nil, err
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() (err error) {
	if len(f.Tests) == 0 {
		return errors.New("no tests found")
	}

	names := make(map[string]struct{}, len(f.Tests))
	for i, t := range f.Tests {
		if len(t.Name) == 0 {
			err = multierr.Append(err, fmt.Errorf("test %d: name is required", i+1))
			continue
		}
		if _, ok := names[t.Name]; ok {
			err = multierr.Append(err, fmt.Errorf("test %q: duplicate name", t.Name))
		}
		names[t.Name] = struct{}{}

		if len(t.Steps) == 0 {
			err = multierr.Append(err, fmt.Errorf("test %q: no steps", t.Name))
		}
		for j, s := range t.Steps {
			if serr := s.validate(); serr != nil {
				err = multierr.Append(err, fmt.Errorf("test %q: step %d: %w", t.Name, j+1, serr))
			}
		}
	}
	return err
}

func (s *Step) validate() error {
	var kinds []string
	if len(s.Exec) > 0 {
		kinds = append(kinds, "exec")
	}
	if len(s.Fire) > 0 {
		kinds = append(kinds, "fire")
	}
	if s.File != nil {
		kinds = append(kinds, "file")
	}

	switch len(kinds) {
	case 0:
		return errors.New("one of exec, fire, or file is required")
	case 1:
		// ok
	default:
		return fmt.Errorf("only one of exec, fire, or file is allowed, got %v", strings.Join(kinds, ", "))
	}

	if len(s.Exec) == 0 && (s.Want != nil || s.Expect != nil) {
		return errors.New("want and expect require exec")
	}

	if s.File != nil {
		if len(s.File.Path) == 0 {
			return errors.New("file: path is required")
		}
		if len(s.File.Contains) == 0 {
			return errors.New("file: contains is required")
		}
	}

	if e := s.Expect; e != nil && len(e.Matches) > 0 {
		if _, err := regexp.Compile(e.Matches); err != nil {
			return fmt.Errorf("expect: bad pattern: %w", err)
		}
	}
	return nil
}

// seedCommands returns the commands to seed the shell for this test.
// db is the path of the copied database, if any.
func (t *Test) seedCommands(db string) string {
	var seed string
	switch t.Seed {
	case "":
		// Tests that bring a database don't get the default tables.
		if len(db) == 0 {
			seed = fixture.Seed{}.String()
		}
	case SeedDefault:
		seed = fixture.Seed{}.String()
	case SeedBlobs:
		seed = fixture.Seed{Blobs: true}.String()
	case SeedNone:
		// nothing
	default:
		seed = t.Seed
	}

	if len(db) > 0 {
		open := ".open " + db
		if len(seed) > 0 {
			seed = open + "\n" + seed
		} else {
			seed = open
		}
	}
	return seed
}

// predicate builds the checks for the output of an exec step.
// It returns nil if there are none.
func (s *Step) predicate() shell.Predicate {
	var preds []shell.Predicate
	if s.Want != nil {
		preds = append(preds, shell.Equals(strings.TrimSuffix(*s.Want, "\n")))
	}
	if e := s.Expect; e != nil {
		if e.Lines != nil {
			preds = append(preds, shell.Lines(*e.Lines))
		}
		if len(e.Contains) > 0 {
			preds = append(preds, shell.Contains(e.Contains))
		}
		if len(e.NotContains) > 0 {
			preds = append(preds, shell.NotContains(e.NotContains))
		}
		if len(e.Matches) > 0 {
			// Already validated.
			preds = append(preds, shell.Matches(regexp.MustCompile(e.Matches)))
		}
		if e.Empty {
			preds = append(preds, shell.Empty())
		}
	}

	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return shell.All(preds...)
	}
}
