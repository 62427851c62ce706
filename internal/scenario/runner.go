package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abhinav/shelltest/internal/fixture"
	"github.com/abhinav/shelltest/internal/log"
	"github.com/abhinav/shelltest/internal/shell"
	"github.com/abhinav/shelltest/internal/tail"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a single test.
type Result struct {
	File string // scenario file
	Test string // test name

	// Step that failed, starting at 1.
	// Zero if the test failed before running any steps, or passed.
	Step int

	Err      error
	Duration time.Duration
}

// Failed reports whether the test failed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("file", r.File),
		slog.String("test", r.Test),
		log.OmitEmpty(slog.Int, "step", r.Step),
		slog.Duration("duration", r.Duration),
	)
}

// Runner runs scenario files.
type Runner struct {
	// Configuration for the shells started by tests.
	// Seed and Dir are set per test.
	Shell shell.Config

	// Log receives progress messages. Defaults to discarding them.
	Log *log.Logger

	// Clock used for timing and timeouts. Defaults to the real clock.
	Clock clock.Clock

	once  sync.Once
	start func(shell.Config) (shell.Driver, error)
}

func (r *Runner) init() {
	r.once.Do(func() {
		if r.Log == nil {
			r.Log = log.Discard
		}
		if r.Clock == nil {
			r.Clock = clock.New()
		}
		if r.start == nil {
			r.start = startShell
		}
	})
}

func startShell(cfg shell.Config) (shell.Driver, error) {
	drv, err := shell.Start(cfg)
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// RunFiles parses and runs the given scenario files, running up to parallel
// files at the same time. Results are reported in the order of the files and
// their tests.
//
// RunFiles fails only if a file cannot be parsed.
// Test failures are reported in the results.
func (r *Runner) RunFiles(ctx context.Context, paths []string, parallel int) ([]Result, error) {
	r.init()

	files := make([]*File, len(paths))
	var err error
	for i, path := range paths {
		f, perr := ParseFile(path)
		if perr != nil {
			err = multierr.Append(err, perr)
			continue
		}
		files[i] = f
	}
	if err != nil {
		return nil, err
	}

	if parallel < 1 {
		parallel = 1
	}

	results := make([][]Result, len(files))
	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i, f := range files {
		eg.Go(func() error {
			results[i] = r.Run(ctx, f)
			return nil
		})
	}
	_ = eg.Wait() // Run doesn't fail

	var all []Result
	for _, rs := range results {
		all = append(all, rs...)
	}
	return all, nil
}

// Run runs all tests in the file one after the other.
func (r *Runner) Run(ctx context.Context, f *File) []Result {
	r.init()

	results := make([]Result, 0, len(f.Tests))
	for _, t := range f.Tests {
		start := r.Clock.Now()
		res := Result{File: f.Path, Test: t.Name}
		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.Step, res.Err = r.runTest(ctx, f, &t)
		}
		res.Duration = r.Clock.Since(start)

		if res.Failed() {
			r.Log.Debug("fail", "result", &res, "error", res.Err)
		} else {
			r.Log.Debug("pass", "result", &res)
		}
		results = append(results, res)
	}
	return results
}

// runTest runs a single test and reports the failing step, if any.
func (r *Runner) runTest(ctx context.Context, f *File, t *Test) (step int, err error) {
	dir, err := os.MkdirTemp("", "shelltest-")
	if err != nil {
		return 0, fmt.Errorf("create test directory: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(dir); rerr != nil {
			r.Log.Debugf("remove %v: %v", dir, rerr)
		}
	}()

	var db string
	if len(t.Database) > 0 {
		src := t.Database
		if !filepath.IsAbs(src) && len(f.Path) > 0 {
			src = filepath.Join(filepath.Dir(f.Path), src)
		}

		db = fixture.TempPath(dir)
		if err := fixture.Clone(src, db); err != nil {
			return 0, err
		}
		defer multierr.AppendInvoke(&err, multierr.Invoke(func() error {
			return fixture.Remove(db)
		}))
	}

	vars := strings.NewReplacer("${TESTDIR}", dir, "${DB}", db)

	cfg := r.Shell
	cfg.Seed = vars.Replace(t.seedCommands(db))
	cfg.Dir = dir
	cfg.Clock = r.Clock
	if cfg.Log == nil {
		cfg.Log = r.Log.WithName(t.Name)
	}

	drv, err := r.start(cfg)
	if err != nil {
		return 0, err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(drv.Quit))

	for i, s := range t.Steps {
		if err := ctx.Err(); err != nil {
			return i + 1, err
		}
		if err := r.runStep(ctx, drv, dir, vars, &s); err != nil {
			return i + 1, err
		}
	}
	return 0, nil
}

func (r *Runner) runStep(ctx context.Context, drv shell.Driver, dir string, vars *strings.Replacer, s *Step) error {
	switch {
	case len(s.Exec) > 0:
		cmd := vars.Replace(s.Exec)
		if pred := s.predicate(); pred != nil {
			return shell.Validate(drv, cmd, pred)
		}
		_, err := drv.Execute(cmd)
		return err

	case len(s.Fire) > 0:
		return drv.Fire(vars.Replace(s.Fire))

	case s.File != nil:
		return r.waitForFile(ctx, dir, vars, s.File)

	default:
		return fmt.Errorf("empty step")
	}
}

func (r *Runner) waitForFile(ctx context.Context, dir string, vars *strings.Replacer, fc *FileCheck) (err error) {
	path := vars.Replace(fc.Path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	timeout := fc.Timeout
	if timeout == 0 {
		timeout = DefaultFileTimeout
	}
	ctx, cancel := r.Clock.WithTimeout(ctx, timeout)
	defer cancel()

	follow := tail.Follower{Path: path, Clock: r.Clock}
	follow.Start()
	defer multierr.AppendInvoke(&err, multierr.Invoke(follow.Stop))

	return follow.WaitUntilContains(ctx, fc.Contains)
}
