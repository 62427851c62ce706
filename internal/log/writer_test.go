package log

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		give []string
		want string
	}{
		{desc: "empty", want: ""},
		{
			desc: "split message",
			give: []string{"foo\nbar"},
			want: unlines(
				"INFO [x] foo",
				"INFO [x] bar",
			),
		},
		{
			desc: "ends with a newline",
			give: []string{"foo\n", "bar\n"},
			want: unlines(
				"INFO [x] foo",
				"INFO [x] bar",
			),
		},
		{
			desc: "no newlines",
			give: []string{"foo", "bar"},
			want: unlines(
				"INFO [x] foobar",
			),
		},
		{
			desc: "newline late",
			give: []string{"foo", "b\nar"},
			want: unlines(
				"INFO [x] foob",
				"INFO [x] ar",
			),
		},
		{
			desc: "blank line in the middle",
			give: []string{"foo", "\n\nbar\n"},
			want: unlines(
				"INFO [x] foo",
				"INFO [x] ",
				"INFO [x] bar",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			var buff bytes.Buffer
			log := New(&buff).WithName("x")

			w := Writer{Log: log, Level: Info}
			for _, s := range tt.give {
				_, err := io.WriteString(&w, s)
				require.NoError(t, err)
			}
			require.NoError(t, w.Close())

			if tt.want == "" {
				assert.Empty(t, buff.String())
				return
			}
			assert.Equal(t, tt.want, buff.String())
		})
	}
}

func TestWriterPrefix(t *testing.T) {
	t.Parallel()

	var buff bytes.Buffer
	w := Writer{Log: New(&buff), Level: Error, Prefix: "stderr: "}
	_, err := io.WriteString(&w, "Parse error: no such table: x\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, unlines("ERROR stderr: Parse error: no such table: x"), buff.String())
}
