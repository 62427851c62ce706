package litesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc        string
		give        []string // lines
		want        []string // statements
		wantPending bool
	}{
		{desc: "empty", give: []string{""}},
		{
			desc: "single",
			give: []string{"SELECT 1;"},
			want: []string{"SELECT 1;"},
		},
		{
			desc: "several on a line",
			give: []string{"SELECT 1; SELECT 2;SELECT 3;"},
			want: []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"},
		},
		{
			desc: "across lines",
			give: []string{"INSERT INTO users VALUES (1, 'a'),", "  (2, 'b');"},
			want: []string{"INSERT INTO users VALUES (1, 'a'),\n  (2, 'b');"},
		},
		{
			desc:        "incomplete",
			give:        []string{"SELECT 1"},
			wantPending: true,
		},
		{
			desc: "semicolon in string",
			give: []string{"SELECT 'a;b';"},
			want: []string{"SELECT 'a;b';"},
		},
		{
			desc: "escaped quote",
			give: []string{"SELECT 'it''s; here';"},
			want: []string{"SELECT 'it''s; here';"},
		},
		{
			desc: "string across lines",
			give: []string{"SELECT 'a;", "b';"},
			want: []string{"SELECT 'a;\nb';"},
		},
		{
			desc:        "unterminated string",
			give:        []string{"SELECT 'a;"},
			wantPending: true,
		},
		{
			desc: "quoted identifiers",
			give: []string{`SELECT "a;b", [c;d], ` + "`e;f`" + ` FROM t;`},
			want: []string{`SELECT "a;b", [c;d], ` + "`e;f`" + ` FROM t;`},
		},
		{
			desc: "line comment",
			give: []string{"SELECT 1; -- trailing; comment", "SELECT 2;"},
			want: []string{"SELECT 1;", "SELECT 2;"},
		},
		{
			desc: "block comment",
			give: []string{"SELECT /* a; b", "c; */ 1;"},
			want: []string{"SELECT /* a; b\nc; */ 1;"},
		},
		{
			desc: "empty statements",
			give: []string{";;  ;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			var (
				s   splitter
				got []string
			)
			for _, line := range tt.give {
				got = append(got, s.Feed(line)...)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPending, s.Pending())
		})
	}
}

func TestSplitter_reset(t *testing.T) {
	t.Parallel()

	var s splitter
	s.Feed("SELECT 'unterminated")
	assert.True(t, s.Pending())

	s.Reset()
	assert.False(t, s.Pending())
	assert.Equal(t, []string{"SELECT 1;"}, s.Feed("SELECT 1;"))
}
