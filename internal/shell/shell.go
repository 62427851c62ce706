package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abhinav/shelltest/internal/log"
	"github.com/abhinav/shelltest/internal/paniclog"
	"github.com/abhinav/shelltest/internal/proc"
	"github.com/benbjohnson/clock"
)

// session is the part of proc.Session that the driver uses.
type session interface {
	Write(text string) error
	ReadReady(ctx context.Context) (proc.Streams, error)
	ReadChunk(stream proc.Stream) ([]byte, error)
	Terminate() error
	Done() <-chan struct{}
}

var _ session = (*proc.Session)(nil)

// minimal hook to change how shells are started. Tests will provide a
// different implementation.
type system struct {
	Environ func() []string
	Start   func(proc.Config) (session, error)
}

var defaultSystem = system{
	Environ: os.Environ,
	Start: func(cfg proc.Config) (session, error) {
		return proc.Start(cfg)
	},
}

// ShellDriver runs commands against a shell process.
//
// A ShellDriver owns its process: it must be closed with Quit or Close.
// It is not safe for concurrent use.
type ShellDriver struct {
	sess   session
	log    *log.Logger
	stderr *log.Writer
	clock  clock.Clock

	timeout   time.Duration
	quitDelay time.Duration
	sentinel  string
	query     string

	// Set once the driver can no longer be used.
	// All calls return this error afterwards.
	fault error
}

// Start spawns a shell with the given configuration.
// If cfg.Seed is set, it is written to the shell right away.
//
// Start fails with a *proc.SpawnError if the shell could not be launched.
func Start(cfg Config) (*ShellDriver, error) {
	return start(cfg, &defaultSystem)
}

func start(cfg Config, sys *system) (*ShellDriver, error) {
	cfg.setDefaults()

	env := append(sys.Environ(), "RUST_BACKTRACE=1")
	env = append(env, cfg.Env...)

	cfg.Log.Debug("starting shell", "config", &cfg)
	sess, err := sys.Start(proc.Config{
		Path:  cfg.Path,
		Args:  cfg.Args,
		Env:   env,
		Dir:   cfg.Dir,
		Seed:  cfg.Seed,
		Clock: cfg.Clock,
		Log:   cfg.Log.WithName("proc"),
	})
	if err != nil {
		return nil, err
	}

	return &ShellDriver{
		sess: sess,
		log:  cfg.Log,
		stderr: &log.Writer{
			Log:   cfg.Log.WithName("stderr"),
			Level: log.Debug,
		},
		clock:     cfg.Clock,
		timeout:   cfg.Timeout,
		quitDelay: cfg.QuitDelay,
		sentinel:  cfg.Sentinel,
		query:     sentinelQuery(cfg.Sentinel),
	}, nil
}

// Execute runs a command and waits for it to complete.
// It returns the combined stdout and stderr output of the command, with the
// sentinel removed, every line trimmed, and empty lines dropped.
//
// Commands that redirect output to a file (.output) return immediately with
// an empty result.
//
// If the shell closes its stderr, Execute fails with a *ShellFaultError.
// If the command does not complete within the timeout, it fails with a
// *TimeoutError. Both leave the driver unusable.
func (d *ShellDriver) Execute(command string) (string, error) {
	if d.fault != nil {
		return "", d.fault
	}

	d.log.Debugf("execute: %s", command)
	if err := d.sess.Write(command); err != nil {
		return "", d.setFault(err)
	}
	if isRedirect(command) {
		return "", nil
	}
	if err := d.sess.Write(d.query); err != nil {
		return "", d.setFault(err)
	}

	out, err := d.collect(command)
	if err != nil {
		return "", d.setFault(err)
	}

	result := cleanOutput(out, d.sentinel)
	d.log.Debugf("result: %s", result)
	return result, nil
}

// collect reads the output of a command up to and including the sentinel.
func (d *ShellDriver) collect(command string) (string, error) {
	ctx, cancel := d.clock.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var buf bytes.Buffer
	for !hasSentinel(buf.Bytes(), d.sentinel) {
		ready, err := d.sess.ReadReady(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return "", &TimeoutError{
					Command: command,
					Timeout: d.timeout,
					Output:  buf.String(),
				}
			case errors.Is(err, io.EOF):
				// Both streams are gone without the sentinel.
				return "", &ShellFaultError{Output: buf.String()}
			default:
				return "", fmt.Errorf("wait for output: %w", err)
			}
		}

		if ready.Has(proc.Stderr) {
			bs, err := d.sess.ReadChunk(proc.Stderr)
			if errors.Is(err, io.EOF) {
				return "", &ShellFaultError{Output: buf.String()}
			}
			if err != nil {
				return "", fmt.Errorf("read stderr: %w", err)
			}
			buf.Write(bs)
			d.stderr.Write(bs)
		}

		if ready.Has(proc.Stdout) {
			bs, err := d.sess.ReadChunk(proc.Stdout)
			switch {
			case errors.Is(err, io.EOF):
				// Keep waiting on stderr.
				// It will report the crash, if any.
				d.log.Debugf("stdout closed")
			case err != nil:
				return "", fmt.Errorf("read stdout: %w", err)
			default:
				buf.Write(bs)
			}
		}
	}

	return buf.String(), nil
}

// RunAndValidate runs a command and checks its output with the predicate.
// If the predicate rejects the output, RunAndValidate fails with an
// *AssertionError. The driver remains usable after assertion failures.
func (d *ShellDriver) RunAndValidate(command string, pred Predicate) error {
	return validate(d, d.log, command, pred)
}

// Validate runs a command with the given driver and checks its output with
// the predicate. It behaves like ShellDriver.RunAndValidate.
func Validate(d Driver, command string, pred Predicate) error {
	return validate(d, log.Discard, command, pred)
}

func validate(d Driver, logger *log.Logger, command string, pred Predicate) error {
	out, err := d.Execute(command)
	if err != nil {
		return err
	}

	ok, detail, err := check(pred, out, logger)
	if err != nil {
		return fmt.Errorf("check output of %q: %w", command, err)
	}
	if !ok {
		return &AssertionError{
			Command: command,
			Output:  out,
			Detail:  detail,
		}
	}
	return nil
}

func check(pred Predicate, out string, logger *log.Logger) (ok bool, detail string, err error) {
	defer paniclog.Recover(&err, logger)

	ok, detail = pred(out)
	return ok, detail, nil
}

// Fire writes a command to the shell without waiting for it to complete.
// Its output, if any, becomes part of the next Execute result.
func (d *ShellDriver) Fire(command string) error {
	if d.fault != nil {
		return d.fault
	}

	d.log.Debugf("fire: %s", command)
	if err := d.sess.Write(command); err != nil {
		return d.setFault(err)
	}
	return nil
}

// Debug runs a command and logs its result at debug level.
func (d *ShellDriver) Debug(command string) (string, error) {
	out, err := d.Execute(command)
	if err != nil {
		d.log.Debugf("%s failed: %v", command, err)
		return "", err
	}
	d.log.Debugf("%s\n%s", command, out)
	return out, nil
}

// Quit asks the shell to exit with .quit, waits briefly for it to do so,
// and then terminates it regardless.
//
// Termination is expected and is not reported as an error.
// Quit is safe to call multiple times, including after a fault.
func (d *ShellDriver) Quit() error {
	if errors.Is(d.fault, ErrClosed) {
		return nil
	}

	if d.fault == nil {
		if err := d.sess.Write(".quit"); err != nil {
			d.log.Debugf("write .quit: %v", err)
		} else {
			select {
			case <-d.sess.Done():
			case <-d.clock.After(d.quitDelay):
				d.log.Debugf("shell did not exit in %v", d.quitDelay)
			}
		}
	}

	d.terminate()
	d.fault = ErrClosed
	return nil
}

// Close is an alias for Quit for use with defer.
func (d *ShellDriver) Close() error {
	return d.Quit()
}

// setFault marks the driver unusable and terminates the shell.
func (d *ShellDriver) setFault(err error) error {
	d.log.Debugf("fault: %v", err)
	d.fault = err
	d.terminate()
	return err
}

func (d *ShellDriver) terminate() {
	if err := d.sess.Terminate(); err != nil {
		d.log.Debugf("terminate: %v", err)
	}
	if err := d.stderr.Close(); err != nil {
		d.log.Debugf("flush stderr: %v", err)
	}
}
