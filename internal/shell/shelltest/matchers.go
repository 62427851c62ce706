package shelltest

import (
	"fmt"
	"strings"

	"github.com/golang/mock/gomock"
)

// CommandMatcher is a gomock matcher that matches commands by prefix,
// ignoring surrounding whitespace.
type CommandMatcher struct {
	Prefix string
}

var _ gomock.Matcher = CommandMatcher{}

func (m CommandMatcher) String() string {
	return fmt.Sprintf("command starting with %q", m.Prefix)
}

// Matches reports whether the provided command matches.
func (m CommandMatcher) Matches(x interface{}) bool {
	cmd, ok := x.(string)
	if !ok {
		return false
	}

	return strings.HasPrefix(strings.TrimSpace(cmd), m.Prefix)
}
