package cmd

import (
	"fmt"

	"github.com/fakeyudi/quickterm/internal/complete"
	"github.com/fakeyudi/quickterm/internal/dispatch"
	"github.com/fakeyudi/quickterm/internal/history"
	"github.com/fakeyudi/quickterm/internal/logging"
	"github.com/fakeyudi/quickterm/internal/session"
	"github.com/fakeyudi/quickterm/internal/shell"
	"github.com/fakeyudi/quickterm/internal/tui"
)

var (
	log     = logging.ForComponent(logging.CompUI)
	histLog = logging.ForComponent(logging.CompHistory)
)

// app is the set of components built from cfg and env for one invocation.
type app struct {
	sess     *session.Session
	disp     *dispatch.Dispatcher
	resolver *complete.Resolver
	hist     *history.Log
	store    history.Store
	closers  []func() error
}

func newApp() (*app, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}
	a := &app{
		sess: sess,
		disp: dispatch.New(sess, env),
	}
	a.resolver = a.newResolver()
	a.hist, a.store = loadHistory()
	return a, nil
}

func (a *app) deps() tui.Deps {
	return tui.Deps{
		Session:    a.sess,
		Dispatcher: a.disp,
		Resolver:   a.resolver,
		History:    a.hist,
		Store:      a.store,
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}
}

func newSession() (*session.Session, error) {
	var opts []session.Option
	if startDir != "" {
		opts = append(opts, session.WithStartDir(startDir))
	}
	sess, err := session.New(env.Home, opts...)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return sess, nil
}

// newResolver uses the watched directory cache when completion_cache is set
// and falls back to direct reads if the watcher cannot be created.
func (a *app) newResolver() *complete.Resolver {
	if !cfg.UseCompletionCache() {
		return complete.New(a.sess)
	}
	cl, err := complete.NewCachedLister(complete.OSLister{})
	if err != nil {
		log.Warn("completion cache disabled", "error", err)
		return complete.New(a.sess)
	}
	a.closers = append(a.closers, cl.Close)
	return complete.New(a.sess, complete.WithLister(cl))
}

// loadHistory returns the history log and, when persistence is enabled, the
// store backing it. A first run may be seeded from the shell's own history.
func loadHistory() (*history.Log, history.Store) {
	if !cfg.ShouldPersistHistory() {
		return history.New(cfg.HistoryLimit, nil), nil
	}
	store, err := history.NewStore()
	if err != nil {
		histLog.Warn("history will not be saved", "error", err)
		return history.New(cfg.HistoryLimit, nil), nil
	}
	entries, err := store.Load()
	if err != nil {
		histLog.Warn("ignoring unreadable history", "error", err)
	}
	if len(entries) == 0 && cfg.ShouldImportShellHistory() {
		name := shell.Name(env.ShellPath)
		imported, err := history.ImportShellFile(env.Home, name)
		if err != nil {
			histLog.Warn("importing shell history", "shell", name, "error", err)
		}
		entries = imported
		histLog.Info("imported shell history", "shell", name, "count", len(imported))
	}
	return history.New(cfg.HistoryLimit, entries), store
}
