package envtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenv(t *testing.T) {
	t.Parallel()

	env := MustPairs(
		"FOO", "bar",
		"BAZ", "",
	)

	tests := []struct {
		desc   string
		give   string
		want   string
		wantOK bool
	}{
		{desc: "match", give: "FOO", want: "bar", wantOK: true},
		{desc: "empty match", give: "BAZ", want: "", wantOK: true},
		{desc: "no match", give: "QUX", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, env.Getenv(tt.give))

			got, ok := env.LookupEnv(tt.give)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Empty.Getenv("QUX"))
	assert.Empty(t, Empty.Environ())

	var env Env
	_, ok := env.LookupEnv("QUX")
	assert.False(t, ok)
}

func TestMustPairsOddArguments(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustPairs("foo", "bar", "baz")
	})
}

func TestPairsOddArguments(t *testing.T) {
	t.Parallel()

	_, err := Pairs("foo", "bar", "baz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not even")
}

func TestParse(t *testing.T) {
	t.Parallel()

	env, err := Parse("HOME=/home/user", "PS1=a=b", "EMPTY=", "HOME=/root")
	require.NoError(t, err)
	assert.Equal(t, Env{
		"HOME":  "/root",
		"PS1":   "a=b",
		"EMPTY": "",
	}, env)

	t.Run("bad entry", func(t *testing.T) {
		t.Parallel()

		_, err := Parse("FOO")
		assert.ErrorContains(t, err, `bad environment entry "FOO"`)

		_, err = Parse("=bar")
		assert.Error(t, err)
	})
}

func TestEnviron(t *testing.T) {
	t.Parallel()

	env := MustPairs("B", "2", "A", "1")
	assert.Equal(t, []string{"A=1", "B=2"}, env.Environ())

	roundTrip, err := Parse(env.Environ()...)
	require.NoError(t, err)
	assert.Equal(t, env, roundTrip)
}
