package shell

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate checks the cleaned output of a command.
// It returns false and an explanation if the output is unacceptable.
type Predicate func(result string) (ok bool, detail string)

// Equals accepts output that is exactly want.
func Equals(want string) Predicate {
	return func(got string) (bool, string) {
		if got == want {
			return true, ""
		}
		return false, fmt.Sprintf("want %q", want)
	}
}

// Contains accepts output that contains sub.
func Contains(sub string) Predicate {
	return func(got string) (bool, string) {
		if strings.Contains(got, sub) {
			return true, ""
		}
		return false, fmt.Sprintf("want output containing %q", sub)
	}
}

// NotContains accepts output that does not contain sub.
func NotContains(sub string) Predicate {
	return func(got string) (bool, string) {
		if !strings.Contains(got, sub) {
			return true, ""
		}
		return false, fmt.Sprintf("want output without %q", sub)
	}
}

// Matches accepts output matching the regular expression.
func Matches(re *regexp.Regexp) Predicate {
	return func(got string) (bool, string) {
		if re.MatchString(got) {
			return true, ""
		}
		return false, fmt.Sprintf("want output matching /%v/", re)
	}
}

// Empty accepts commands that produce no output.
func Empty() Predicate {
	return func(got string) (bool, string) {
		if len(got) == 0 {
			return true, ""
		}
		return false, "want no output"
	}
}

// Lines accepts output with exactly n lines.
func Lines(n int) Predicate {
	return func(got string) (bool, string) {
		var count int
		if len(got) > 0 {
			count = strings.Count(got, "\n") + 1
		}
		if count == n {
			return true, ""
		}
		return false, fmt.Sprintf("want %d lines, got %d", n, count)
	}
}

// Satisfies accepts output for which fn returns true.
func Satisfies(fn func(string) bool) Predicate {
	return func(got string) (bool, string) {
		if fn(got) {
			return true, ""
		}
		return false, "output rejected by predicate"
	}
}

// All accepts output that all the given predicates accept.
// The first rejection is reported.
func All(preds ...Predicate) Predicate {
	return func(got string) (bool, string) {
		for _, p := range preds {
			if ok, detail := p(got); !ok {
				return false, detail
			}
		}
		return true, ""
	}
}
