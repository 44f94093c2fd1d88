// Package dispatch executes command lines on behalf of the popup. A line is
// either a directory change handled in-process or a shell command run in a
// fresh child process; after a successful command the session directory is
// reconciled with where the shell actually ended up.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/quickterm/internal/logging"
	"github.com/fakeyudi/quickterm/internal/session"
	"github.com/fakeyudi/quickterm/internal/shell"
)

var log = logging.ForComponent(logging.CompDispatch)

// BusyMessage is written to stderr when Run is called while another
// execution is still in flight.
const BusyMessage = "another command is still running\n"

// readSize bounds a single chunk.
const readSize = 32 * 1024

// pipeGrace is how long output is still read after cancellation before the
// pipes are closed under any process that escaped the kill.
const pipeGrace = 500 * time.Millisecond

// Dispatcher runs one command line at a time against a Session.
type Dispatcher struct {
	sess   *session.Session
	env    shell.Environment
	prober Prober
	busy   atomic.Bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProber replaces the default pwd probe.
func WithProber(p Prober) Option {
	return func(d *Dispatcher) { d.prober = p }
}

// New returns a Dispatcher that spawns through env and keeps sess current.
func New(sess *session.Session, env shell.Environment, opts ...Option) *Dispatcher {
	d := &Dispatcher{sess: sess, env: env, prober: shellProber{env: env}}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Busy reports whether an execution is in flight.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Run starts executing raw and returns immediately. Failures never escape as
// errors: they arrive as stderr chunks followed by a non-zero Outcome.
// Cancelling ctx kills a running process.
func (d *Dispatcher) Run(ctx context.Context, raw string) *Execution {
	ex := newExecution(raw)
	if !d.busy.CompareAndSwap(false, true) {
		log.Warn("rejected overlapping command", "id", ex.ID, "command", raw)
		go func() {
			ex.emit(Stderr, BusyMessage)
			ex.finish(1)
		}()
		return ex
	}
	go func() {
		code := d.execute(ctx, ex)
		// Free the slot before the outcome so the caller can submit again
		// as soon as it sees it.
		d.busy.Store(false)
		ex.finish(code)
	}()
	return ex
}

// IsChangeDirectory reports whether line is a cd built-in and returns its
// argument; a bare cd means ~. Matching surrounding quotes are removed.
func IsChangeDirectory(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if t == "cd" {
		return "~", true
	}
	if len(t) < 3 || !strings.HasPrefix(t, "cd") || !unicode.IsSpace(rune(t[2])) {
		return "", false
	}
	arg := strings.TrimSpace(t[2:])
	if arg == "" {
		return "~", true
	}
	return unquote(arg), true
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// execute runs one line to completion and returns its exit code.
func (d *Dispatcher) execute(ctx context.Context, ex *Execution) int {
	line := strings.TrimSpace(ex.Command)
	if line == "" {
		return 0
	}
	if arg, ok := IsChangeDirectory(line); ok {
		return d.changeDirectory(ex, arg)
	}
	return d.spawn(ctx, ex, line)
}

func (d *Dispatcher) changeDirectory(ex *Execution, arg string) int {
	if _, err := d.sess.ChangeDirectory(arg); err != nil {
		var de *session.DirError
		if errors.As(err, &de) {
			ex.emit(Stderr, de.Message())
		} else {
			ex.emit(Stderr, err.Error()+"\n")
		}
		return 1
	}
	ex.emit(Stdout, "")
	return 0
}

func (d *Dispatcher) spawn(ctx context.Context, ex *Execution, line string) int {
	dir := d.sess.Dir()
	cmd := d.env.Command(ctx, dir, line)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return d.startFailed(ex, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return d.startFailed(ex, err)
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return d.startFailed(ex, err)
	}
	log.Info("command started", "id", ex.ID, "pid", cmd.Process.Pid, "dir", dir, "command", line)

	release := context.AfterFunc(ctx, func() {
		time.Sleep(pipeGrace)
		stdout.Close()
		stderr.Close()
	})
	defer release()

	// Both pipes must be drained before Wait closes them.
	var g errgroup.Group
	g.Go(func() error { return pump(ex, stdout, Stdout) })
	g.Go(func() error { return pump(ex, stderr, Stderr) })
	if err := g.Wait(); err != nil {
		log.Warn("output stream ended early", "id", ex.ID, "err", err)
	}

	code := exitCode(cmd.Wait())
	log.Info("command exited", "id", ex.ID, "code", code, "elapsed", time.Since(start))

	if code == 0 && !strings.HasPrefix(line, "cd ") {
		d.reconcile(ctx, ex, dir)
	}
	return code
}

func (d *Dispatcher) startFailed(ex *Execution, err error) int {
	log.Error("command failed to start", "id", ex.ID, "shell", d.env.ShellPath, "err", err)
	ex.emit(Stderr, fmt.Sprintf("failed to start %s: %v\n", d.env.ShellPath, err))
	return 1
}

// reconcile asks the shell where it is and adopts the answer. Probe errors
// leave the directory untouched.
func (d *Dispatcher) reconcile(ctx context.Context, ex *Execution, dir string) {
	got, err := d.prober.Pwd(ctx, dir)
	if err != nil {
		log.Warn("pwd probe failed", "id", ex.ID, "dir", dir, "err", err)
		return
	}
	if d.sess.Reconcile(got) {
		log.Info("directory reconciled", "id", ex.ID, "from", dir, "to", got)
	}
}

// pump forwards every read from r as its own chunk.
func pump(ex *Execution, r io.Reader, stream Stream) error {
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			ex.emit(stream, string(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading %s: %w", stream, err)
		}
	}
}

// exitCode maps the result of Wait to a process exit code. A process killed
// by a signal reports -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	log.Warn("wait failed", "err", err)
	return 1
}
