package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhinav/shelltest/internal/fixture"
	"github.com/abhinav/shelltest/internal/litesh"
	"github.com/abhinav/shelltest/internal/log/logtest"
	"github.com/abhinav/shelltest/internal/shell"
	"github.com/abhinav/shelltest/internal/shell/shelltest"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _behaviors = map[string]func() (exitCode int){
	"litesh": liteshBehavior,
}

func TestMain(m *testing.M) {
	if b, ok := _behaviors[filepath.Base(os.Args[0])]; ok {
		os.Exit(b())
	}
	os.Exit(m.Run())
}

func liteshBehavior() int {
	sh, err := litesh.New(litesh.Config{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	defer sh.Close()

	if err := sh.Run(os.Stdin); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	return 0
}

func behaviorBinary(t testing.TB, name string) string {
	t.Helper()

	_, ok := _behaviors[name]
	require.True(t, ok, "unknown behavior %q", name)

	exe, err := os.Executable()
	require.NoError(t, err, "determine test executable")

	src, err := os.ReadFile(exe)
	require.NoError(t, err, "read test executable")

	behavior := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(behavior, src, 0o755), "copy test executable")
	return behavior
}

func mustParse(t *testing.T, src string) *File {
	t.Helper()

	f, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	return f
}

// mockRunner builds a Runner that hands out drv for every test
// and records the configurations it was started with.
func mockRunner(t *testing.T, drv shell.Driver) (*Runner, *[]shell.Config) {
	var configs []shell.Config
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(cfg shell.Config) (shell.Driver, error) {
			configs = append(configs, cfg)
			return drv, nil
		},
	}
	return r, &configs
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	gomock.InOrder(
		drv.EXPECT().Execute("SELECT 1+1;").Return("2", nil),
		drv.EXPECT().Fire("SELECT 'x';").Return(nil),
		drv.EXPECT().Execute(".headers on").Return("", nil),
		drv.EXPECT().Quit().Return(nil),
	)

	r, configs := mockRunner(t, drv)
	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: passes
    steps:
      - exec: "SELECT 1+1;"
        want: "2"
      - fire: "SELECT 'x';"
      - exec: ".headers on"
`))

	require.Len(t, results, 1)
	assert.Equal(t, "passes", results[0].Test)
	assert.NoError(t, results[0].Err)
	assert.False(t, results[0].Failed())

	require.Len(t, *configs, 1)
	cfg := (*configs)[0]
	assert.Equal(t, fixture.Seed{}.String(), cfg.Seed)
	assert.NotEmpty(t, cfg.Dir)
	assert.NoDirExists(t, cfg.Dir, "test directory must be removed")
}

func TestRunner_Run_stopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	gomock.InOrder(
		drv.EXPECT().Execute("SELECT 1;").Return("1", nil),
		drv.EXPECT().Execute("SELECT 2;").Return("3", nil),
		drv.EXPECT().Quit().Return(nil),
		// Second test starts afresh.
		drv.EXPECT().Execute("SELECT 4;").Return("4", nil),
		drv.EXPECT().Quit().Return(nil),
	)

	r, _ := mockRunner(t, drv)
	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: fails
    steps:
      - exec: "SELECT 1;"
        want: "1"
      - exec: "SELECT 2;"
        want: "2"
      - exec: "SELECT 3;"
        want: "3"
  - name: passes
    steps:
      - exec: "SELECT 4;"
        expect: {lines: 1}
`))

	require.Len(t, results, 2)

	assert.True(t, results[0].Failed())
	assert.Equal(t, 2, results[0].Step)
	var assertErr *shell.AssertionError
	require.ErrorAs(t, results[0].Err, &assertErr)
	assert.Equal(t, "3", assertErr.Output)

	assert.False(t, results[1].Failed())
	assert.Zero(t, results[1].Step)
}

func TestRunner_Run_fault(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	fault := &shell.ShellFaultError{Output: "thread 'main' panicked"}
	gomock.InOrder(
		drv.EXPECT().Execute("SELECT crash();").Return("", fault),
		drv.EXPECT().Quit().Return(nil),
	)

	r, _ := mockRunner(t, drv)
	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: crashes
    steps:
      - exec: "SELECT crash();"
        want: ""
`))

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Step)
	assert.ErrorIs(t, results[0].Err, fault)
	assert.True(t, shell.IsFault(results[0].Err))
}

func TestRunner_Run_startError(t *testing.T) {
	t.Parallel()

	giveErr := errors.New("great sadness")
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(shell.Config) (shell.Driver, error) {
			return nil, giveErr
		},
	}

	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: a
    steps: [{exec: x}]
`))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, giveErr)
	assert.Zero(t, results[0].Step)
}

func TestRunner_Run_canceled(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(shell.Config) (shell.Driver, error) {
			started.Add(1)
			return nil, errors.New("should not start")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.Run(ctx, mustParse(t, `
tests:
  - name: a
    steps: [{exec: x}]
`))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, started.Load())
}

func TestRunner_Run_placeholders(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	var dir string
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(cfg shell.Config) (shell.Driver, error) {
			dir = cfg.Dir
			return drv, nil
		},
	}

	drv.EXPECT().
		Execute(gomock.Any()).
		DoAndReturn(func(cmd string) (string, error) {
			assert.Equal(t, ".output "+filepath.Join(dir, "out.txt"), cmd)
			return "", nil
		})
	drv.EXPECT().Quit().Return(nil)

	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: a
    seed: none
    steps:
      - exec: ".output ${TESTDIR}/out.txt"
`))
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestRunner_Run_database(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	template := filepath.Join(dir, "template.db")
	require.NoError(t, fixture.Generate(template, 10, 42))

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	var db string
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(cfg shell.Config) (shell.Driver, error) {
			first, _, _ := strings.Cut(cfg.Seed, "\n")
			db = strings.TrimPrefix(first, ".open ")

			// The copy is intact while the shell runs.
			assert.NoError(t, fixture.Integrity(db))
			n, err := fixture.Count(db, "users")
			assert.NoError(t, err)
			assert.Equal(t, 10, n)
			return drv, nil
		},
	}

	drv.EXPECT().Execute("SELECT COUNT(*) FROM users;").Return("10", nil)
	drv.EXPECT().Quit().Return(nil)

	scenario := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(`
tests:
  - name: counts users
    database: template.db
    seed: none
    steps:
      - exec: "SELECT COUNT(*) FROM users;"
        want: "10"
`), 0o644))

	f, err := ParseFile(scenario)
	require.NoError(t, err)

	results := r.Run(context.Background(), f)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	assert.NotEqual(t, template, db, "must not open the template")
	assert.NoFileExists(t, db, "copy must be removed")
	assert.FileExists(t, template)
}

func TestRunner_Run_fileStep(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	drv := shelltest.NewMockDriver(ctrl)

	var dir string
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(cfg shell.Config) (shell.Driver, error) {
			dir = cfg.Dir
			return drv, nil
		},
	}

	// The shell writes the file some time after the command.
	drv.EXPECT().Fire("SELECT 'hello';").DoAndReturn(func(string) error {
		path := filepath.Join(dir, "out.txt")
		go func() {
			time.Sleep(50 * time.Millisecond)
			assert.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))
		}()
		return nil
	})
	drv.EXPECT().Quit().Return(nil).Times(2)

	results := r.Run(context.Background(), mustParse(t, `
tests:
  - name: written
    seed: none
    steps:
      - fire: "SELECT 'hello';"
      - file: {path: out.txt, contains: hello, timeout: 5s}
  - name: never written
    seed: none
    steps:
      - file: {path: nope.txt, contains: hello, timeout: 100ms}
`))

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, 1, results[1].Step)
	assert.ErrorIs(t, results[1].Err, context.DeadlineExceeded)
}

func TestRunner_RunFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c", "d"} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"tests:\n"+
				"  - name: "+name+"1\n    steps: [{exec: x}]\n"+
				"  - name: "+name+"2\n    steps: [{exec: x}]\n",
		), 0o644))
		paths = append(paths, path)
	}

	var running, maxRunning atomic.Int32
	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(shell.Config) (shell.Driver, error) {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			return &countingDriver{running: &running}, nil
		},
	}

	results, err := r.RunFiles(context.Background(), paths, 2)
	require.NoError(t, err)

	var got []string
	for _, res := range results {
		assert.NoError(t, res.Err)
		got = append(got, res.Test)
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "b2", "c1", "c2", "d1", "d2"}, got,
		"results must be in file order")
	assert.LessOrEqual(t, maxRunning.Load(), int32(2))
}

func TestRunner_RunFiles_parseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("tests:\n  - name: a\n    steps: [{exec: x}]\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("tests:\n  - name: a\n"), 0o644))

	r := &Runner{
		Log: logtest.NewLogger(t),
		start: func(shell.Config) (shell.Driver, error) {
			t.Error("no tests may run")
			return nil, errors.New("unexpected")
		},
	}

	_, err := r.RunFiles(context.Background(), []string{good, bad, filepath.Join(dir, "missing.yaml")}, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, bad)
	assert.ErrorContains(t, err, "missing.yaml")
}

// countingDriver accepts every command
// and decrements running when it quits.
type countingDriver struct {
	running *atomic.Int32
}

func (d *countingDriver) Execute(string) (string, error) {
	time.Sleep(10 * time.Millisecond)
	return "", nil
}

func (d *countingDriver) Fire(string) error { return nil }

func (d *countingDriver) Quit() error {
	d.running.Add(-1)
	return nil
}

func TestRunner_litesh(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	template := filepath.Join(dir, "template.db")
	require.NoError(t, fixture.Generate(template, 5, 1))

	scenario := filepath.Join(dir, "litesh.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(`
tests:
  - name: arithmetic
    steps:
      - exec: "SELECT 1+1;"
        want: "2"

  - name: seeded tables
    steps:
      - exec: "SELECT first_name FROM users WHERE id = 1;"
        want: Alice
      - exec: "SELECT * FROM products;"
        expect:
          lines: 4
          contains: "Hat"
      - exec: "SELECT NULL;"
        want: TURSO

  - name: blobs
    seed: blobs
    steps:
      - exec: "SELECT length(x1) FROM t;"
        want: "1023"

  - name: errors
    seed: none
    steps:
      - exec: "SELECT * FROM users;"
        expect:
          contains: "no such table"
      - exec: "SELECT 'still alive';"
        want: still alive

  - name: output file
    seed: none
    steps:
      - exec: ".output out.txt"
      - fire: "SELECT 'to the file';"
      - file: {path: out.txt, contains: to the file, timeout: 5s}
      - exec: ".output stdout"
      - exec: "SELECT 'back';"
        want: back

  - name: database
    database: template.db
    seed: none
    steps:
      - exec: "SELECT COUNT(*) FROM users;"
        want: "5"

  - name: wrong answer
    steps:
      - exec: "SELECT 1+1;"
        want: "3"
`), 0o644))

	r := Runner{
		Shell: shell.Config{
			Path:    behaviorBinary(t, "litesh"),
			Timeout: 10 * time.Second,
		},
		Log: logtest.NewLogger(t),
	}

	results, err := r.RunFiles(context.Background(), []string{scenario}, 1)
	require.NoError(t, err)
	require.Len(t, results, 7)

	for _, res := range results[:6] {
		assert.NoError(t, res.Err, "test %q", res.Test)
	}

	wrong := results[6]
	assert.Equal(t, "wrong answer", wrong.Test)
	assert.Equal(t, 1, wrong.Step)
	var assertErr *shell.AssertionError
	require.ErrorAs(t, wrong.Err, &assertErr)
	assert.Equal(t, "2", assertErr.Output)
}
