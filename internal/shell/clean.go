package shell

import (
	"bytes"
	"strings"
	"unicode"
)

// isRedirect reports whether command redirects the shell's output to a file.
// Such commands must not be followed by the sentinel query: its output would
// land in the file, not on stdout.
func isRedirect(command string) bool {
	return strings.HasPrefix(strings.TrimSpace(command), ".output")
}

// hasSentinel reports whether the output collected so far ends with the
// sentinel, ignoring trailing whitespace.
func hasSentinel(out []byte, sentinel string) bool {
	return bytes.HasSuffix(bytes.TrimRightFunc(out, unicode.IsSpace), []byte(sentinel))
}

// cleanOutput removes the sentinel from the end of the output,
// trims every line, and drops lines that are then empty.
func cleanOutput(out, sentinel string) string {
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.TrimSuffix(out, sentinel)

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); len(line) > 0 {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
