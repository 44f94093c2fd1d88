package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/quickterm/internal/session"
	"github.com/fakeyudi/quickterm/internal/shell"
)

type fixture struct {
	home    string
	tmp     string
	sess    *session.Session
	env     shell.Environment
	mu      sync.Mutex
	changes []string
}

func (f *fixture) dirChanges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.changes...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("dispatcher tests drive /bin/sh")
	}
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		home: filepath.Join(root, "home", "alice"),
		tmp:  filepath.Join(root, "tmp"),
	}
	require.NoError(t, os.MkdirAll(f.home, 0o755))
	require.NoError(t, os.MkdirAll(f.tmp, 0o755))

	f.sess, err = session.New(f.home, session.WithListener(func(dir string) {
		f.mu.Lock()
		f.changes = append(f.changes, dir)
		f.mu.Unlock()
	}))
	require.NoError(t, err)

	f.env = shell.Environment{
		ShellPath: "/bin/sh",
		ShellArgs: []string{"-c"},
		PwdScript: "pwd",
		Home:      f.home,
		Environ:   append(os.Environ(), "QUICKTERM_TEST=from-env"),
	}
	return f
}

// collect reads every event and checks that exactly one outcome arrives, last.
func collect(t *testing.T, ex *Execution) ([]Chunk, Outcome) {
	t.Helper()
	var chunks []Chunk
	var outcomes []Outcome
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ex.Events():
			if !ok {
				require.Len(t, outcomes, 1, "exactly one outcome per execution")
				return chunks, outcomes[0]
			}
			require.Empty(t, outcomes, "event received after the outcome")
			switch {
			case ev.Chunk != nil:
				chunks = append(chunks, *ev.Chunk)
			case ev.Outcome != nil:
				outcomes = append(outcomes, *ev.Outcome)
			default:
				t.Fatal("empty event")
			}
		case <-timeout:
			t.Fatal("execution did not finish")
		}
	}
}

func joined(chunks []Chunk, s Stream) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.Stream == s {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func countingProber(calls *atomic.Int32, dir string, err error) Prober {
	return ProberFunc(func(ctx context.Context, _ string) (string, error) {
		calls.Add(1)
		return dir, err
	})
}

func TestRunChangeDirectoryAbsolute(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "cd "+f.tmp))

	require.Equal(t, []Chunk{{Text: "", Stream: Stdout}}, chunks)
	assert.Equal(t, Outcome{ExitCode: 0}, out)
	assert.Equal(t, f.tmp, f.sess.Dir())
	assert.Equal(t, []string{f.tmp}, f.dirChanges())
}

func TestRunChangeDirectoryMissing(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "cd nonexistent"))

	require.Equal(t, []Chunk{{Text: "No such directory: nonexistent\n", Stream: Stderr}}, chunks)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, "No such directory: nonexistent\n", out.Stderr)
	assert.Equal(t, f.home, f.sess.Dir())
	assert.Empty(t, f.dirChanges())
}

func TestRunChangeDirectoryMessages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.home, "file.txt"), nil, 0o644))
	d := New(f.sess, f.env)

	_, out := collect(t, d.Run(context.Background(), "cd file.txt"))
	assert.Equal(t, "Not a directory: file.txt\n", out.Stderr)
	assert.Equal(t, 1, out.ExitCode)

	_, out = collect(t, d.Run(context.Background(), "cd -"))
	assert.Equal(t, "cd - not implemented\n", out.Stderr)
	assert.Equal(t, 1, out.ExitCode)
}

func TestRunBareCdGoesHome(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, "", nil)))

	_, out := collect(t, d.Run(context.Background(), "cd "+f.tmp))
	require.Equal(t, 0, out.ExitCode)

	_, out = collect(t, d.Run(context.Background(), "  cd  "))
	require.Equal(t, 0, out.ExitCode)
	assert.Equal(t, f.home, f.sess.Dir())
	assert.Zero(t, calls.Load(), "cd must not spawn or probe")
}

func TestRunEchoStreamsStdout(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "echo hi"))

	assert.Contains(t, joined(chunks, Stdout), "hi\n")
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "hi\n", out.Stdout)
	assert.Empty(t, f.dirChanges(), "pwd probe should find the same directory")
}

func TestRunFalseSkipsProbe(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, f.tmp, nil)))

	_, out := collect(t, d.Run(context.Background(), "false"))

	assert.Equal(t, 1, out.ExitCode)
	assert.Zero(t, calls.Load())
	assert.Equal(t, f.home, f.sess.Dir())
}

func TestRunStderrAndExitCode(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "echo oops 1>&2; exit 3"))

	assert.Equal(t, "oops\n", joined(chunks, Stderr))
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.Empty(t, out.Stdout)
}

func TestRunUsesShellForPipesAndRedirection(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	_, out := collect(t, d.Run(context.Background(), "printf 'a\\nb\\nc\\n' | wc -l"))
	require.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "3", strings.TrimSpace(out.Stdout))

	_, out = collect(t, d.Run(context.Background(), "echo saved > out.txt"))
	require.Equal(t, 0, out.ExitCode)
	data, err := os.ReadFile(filepath.Join(f.home, "out.txt"))
	require.NoError(t, err, "redirection should write into the session directory")
	assert.Equal(t, "saved\n", string(data))
}

func TestRunInSessionDirectoryWithEnvironment(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	_, out := collect(t, d.Run(context.Background(), "cd "+f.tmp))
	require.Equal(t, 0, out.ExitCode)

	_, out = collect(t, d.Run(context.Background(), "pwd; echo $QUICKTERM_TEST"))
	require.Equal(t, 0, out.ExitCode)
	assert.Equal(t, f.tmp+"\nfrom-env\n", out.Stdout)
}

func TestRunReconcilesProbedDirectory(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, f.tmp, nil)))

	ex := d.Run(context.Background(), "true")
	_, out := collect(t, ex)

	assert.Equal(t, 0, out.ExitCode)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, f.tmp, f.sess.Dir())
	assert.Equal(t, []string{f.tmp}, f.dirChanges(), "notification fires before the outcome")
}

func TestRunSwallowsProbeError(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, "", errors.New("probe exploded"))))

	chunks, out := collect(t, d.Run(context.Background(), "echo ok"))

	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "", joined(chunks, Stderr))
	assert.Equal(t, f.home, f.sess.Dir())
}

func TestRunSpawnFailure(t *testing.T) {
	f := newFixture(t)
	f.env.ShellPath = filepath.Join(f.tmp, "no-such-shell")
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "echo hi"))

	require.Len(t, chunks, 1)
	assert.Equal(t, Stderr, chunks[0].Stream)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "failed to start "+f.env.ShellPath))
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n"))
	assert.Equal(t, 1, out.ExitCode)
	assert.False(t, d.Busy())
}

func TestRunEmptyLine(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	chunks, out := collect(t, d.Run(context.Background(), "   "))
	assert.Empty(t, chunks)
	assert.Equal(t, Outcome{}, out)
}

func TestRunRejectsWhileBusy(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	first := d.Run(context.Background(), "sleep 0.5; echo done")
	require.True(t, d.Busy())

	chunks, out := collect(t, d.Run(context.Background(), "echo second"))
	assert.Equal(t, []Chunk{{Text: BusyMessage, Stream: Stderr}}, chunks)
	assert.Equal(t, 1, out.ExitCode)

	_, out = collect(t, first)
	assert.Equal(t, "done\n", out.Stdout)

	// The slot is free as soon as the outcome is visible.
	_, out = collect(t, d.Run(context.Background(), "echo third"))
	assert.Equal(t, "third\n", out.Stdout)
}

func TestRunCancellationKillsProcess(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, "", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	ex := d.Run(ctx, "exec sleep 30")
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, out := collect(t, ex)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEqual(t, 0, out.ExitCode)
	assert.Zero(t, calls.Load())
}

func TestRunCancellationKillsWholeLine(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	d := New(f.sess, f.env, WithProber(countingProber(&calls, "", nil)))

	for _, line := range []string{"sleep 30; echo after", "sleep 30 | cat", "(sleep 30 &) ; sleep 30"} {
		ctx, cancel := context.WithCancel(context.Background())
		ex := d.Run(ctx, line)
		time.AfterFunc(100*time.Millisecond, cancel)

		start := time.Now()
		_, out := collect(t, ex)
		assert.Less(t, time.Since(start), 5*time.Second, line)
		assert.Equal(t, -1, out.ExitCode, line)
		assert.NotContains(t, out.Stdout, "after", line)
		cancel()
	}
	assert.Zero(t, calls.Load())
}

func TestWaitReturnsOutcome(t *testing.T) {
	f := newFixture(t)
	d := New(f.sess, f.env)

	ex := d.Run(context.Background(), "echo a; echo b 1>&2")
	out := ex.Wait()
	assert.Equal(t, "a\n", out.Stdout)
	assert.Equal(t, "b\n", out.Stderr)
	assert.NotEmpty(t, ex.ID)

	// A second Wait sees the same outcome.
	assert.Equal(t, out, ex.Wait())
}

func TestIsChangeDirectory(t *testing.T) {
	cases := []struct {
		in   string
		arg  string
		isCd bool
	}{
		{"cd", "~", true},
		{"  cd  ", "~", true},
		{"cd /tmp", "/tmp", true},
		{"cd\t..", "..", true},
		{"cd   ~/Documents  ", "~/Documents", true},
		{`cd "My Files"`, "My Files", true},
		{"cd -", "-", true},
		{"cdx", "", false},
		{"cd-", "", false},
		{"echo cd /tmp", "", false},
		{"ls | cd", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		arg, ok := IsChangeDirectory(tc.in)
		assert.Equal(t, tc.isCd, ok, "IsChangeDirectory(%q)", tc.in)
		assert.Equal(t, tc.arg, arg, "IsChangeDirectory(%q) arg", tc.in)
	}
}
