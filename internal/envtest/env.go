// Package envtest fakes the process environment in tests.
package envtest

import (
	"fmt"
	"sort"
	"strings"
)

// Empty is an environment with no variables.
var Empty Env

// Env is a fake environment.
// The zero value, and a nil Env, are empty.
type Env map[string]string

// Pairs builds a new fake environment with the provided pairs of items. There
// must be exactly an even number of items in the list.
func Pairs(pairs ...string) (Env, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%d items in environment are not even", len(pairs))
	}

	env := make(Env, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		env[pairs[i]] = pairs[i+1]
	}
	return env, nil
}

// MustPairs builds an Env with the provided items, panicking if it fails.
func MustPairs(items ...string) Env {
	e, err := Pairs(items...)
	if err != nil {
		panic(err)
	}
	return e
}

// Parse builds an Env from "KEY=value" entries, as reported by os.Environ.
// Entries without a "=" are rejected. Later entries win.
func Parse(entries ...string) (Env, error) {
	env := make(Env, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || len(k) == 0 {
			return nil, fmt.Errorf("bad environment entry %q", entry)
		}
		env[k] = v
	}
	return env, nil
}

// Getenv is an analog for the os.Getenv operation.
func (e Env) Getenv(k string) string {
	return e[k]
}

// LookupEnv is an analog for the os.LookupEnv operation.
func (e Env) LookupEnv(k string) (string, bool) {
	v, ok := e[k]
	return v, ok
}

// Environ is an analog for the os.Environ operation.
// Entries are sorted by key.
func (e Env) Environ() []string {
	entries := make([]string, 0, len(e))
	for k, v := range e {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}
