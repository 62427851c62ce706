// Package shellopt loads the settings reported by a shell's .show
// directive into user-specified variables.
package shellopt

import (
	"bufio"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/abhinav/shelltest/internal/shell"
	"go.uber.org/multierr"
)

// Value is a receiver for a setting value.
type Value interface {
	Set(value string) error
}

var _ Value = flag.Value(nil) // interface matching

// Loader loads shell settings into user-specified variables.
type Loader struct {
	Shell shell.Driver

	once   sync.Once
	values map[string]Value
}

func (l *Loader) init() {
	l.once.Do(func() { l.values = make(map[string]Value) })
}

// Var specifies that the given setting should be loaded into the provided
// Value object.
func (l *Loader) Var(val Value, name string) {
	l.init()

	l.values[name] = val
}

// StringVar specifies that the given setting should be loaded as a string.
func (l *Loader) StringVar(dest *string, name string) {
	l.Var((*stringValue)(dest), name)
}

// BoolVar specifies that the given setting should be loaded as a boolean.
// Shells report these as "on" or "off".
func (l *Loader) BoolVar(dest *bool, name string) {
	l.Var((*boolValue)(dest), name)
}

// Load runs .show against the shell and fills all previously specified
// variables. Settings the shell does not report are left unchanged.
func (l *Loader) Load() (err error) {
	if len(l.values) == 0 {
		return nil
	}

	out, err := l.Shell.Execute(".show")
	if err != nil {
		return err
	}

	scan := bufio.NewScanner(strings.NewReader(out))
	for scan.Scan() {
		name, value, ok := strings.Cut(scan.Text(), ":")
		if !ok {
			continue
		}

		name = strings.TrimSpace(name)
		r, ok := l.values[name]
		if !ok {
			continue
		}

		if serr := r.Set(strings.TrimSpace(value)); serr != nil {
			err = multierr.Append(err, fmt.Errorf("load setting %q: %v", name, serr))
		}
	}

	return multierr.Append(err, scan.Err())
}

type stringValue string

func (v *stringValue) Set(s string) error {
	if len(s) > 0 {
		// Try to unquote but don't fail if it doesn't work.
		switch s[0] {
		case '"', '\'':
			o, err := strconv.Unquote(s)
			if err == nil {
				s = o
			}
		}
	}

	*(*string)(v) = s
	return nil
}

type boolValue bool

func (v *boolValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "on", "yes":
		*(*bool)(v) = true
	case "off", "no":
		*(*bool)(v) = false
	default:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", s)
		}
		*(*bool)(v) = b
	}
	return nil
}
