package litesh

import "strings"

// splitter accumulates input lines and breaks them into complete SQL
// statements. A statement is complete when it ends with a semicolon that
// isn't inside a string literal, quoted identifier, or comment.
type splitter struct {
	buf strings.Builder

	quote   byte // quote character we're inside, or 0
	comment bool // inside a /* */ comment
}

// Feed adds a line of input and returns the statements it completed.
// Statements are returned with surrounding whitespace removed and include
// their trailing semicolon.
func (s *splitter) Feed(line string) []string {
	var stmts []string
	for i := 0; i < len(line); i++ {
		c := line[i]
		s.buf.WriteByte(c)

		switch {
		case s.comment:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				s.buf.WriteByte('/')
				i++
				s.comment = false
			}

		case s.quote != 0:
			if c == s.quote {
				s.quote = 0
			}

		case c == '\'', c == '"', c == '`':
			s.quote = c

		case c == '[':
			s.quote = ']'

		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			// Line comment: drop the rest of the line.
			str := s.buf.String()
			s.buf.Reset()
			s.buf.WriteString(str[:len(str)-1])
			i = len(line)

		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			s.buf.WriteByte('*')
			i++
			s.comment = true

		case c == ';':
			if stmt := strings.TrimSpace(s.buf.String()); stmt != ";" {
				stmts = append(stmts, stmt)
			}
			s.buf.Reset()
		}
	}

	if s.Pending() {
		s.buf.WriteByte('\n')
	} else {
		s.buf.Reset() // only whitespace left
	}
	return stmts
}

// Pending reports whether an incomplete statement is buffered.
func (s *splitter) Pending() bool {
	return s.quote != 0 || s.comment || len(strings.TrimSpace(s.buf.String())) > 0
}

// Reset discards the buffered incomplete statement.
func (s *splitter) Reset() {
	s.buf.Reset()
	s.quote = 0
	s.comment = false
}
