// Package session holds the simulated working directory that makes
// independent child processes behave like one persistent shell.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fakeyudi/quickterm/internal/logging"
)

var log = logging.ForComponent(logging.CompSession)

// Listener is called with the new absolute directory after every change.
type Listener func(dir string)

// Session is the single owner of the current directory. Only
// ChangeDirectory and Reconcile write it.
type Session struct {
	mu        sync.RWMutex
	dir       string
	home      string
	listeners []Listener
}

// Option configures a Session.
type Option func(*Session)

// WithListener registers l before the session is returned.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// WithStartDir starts the session in dir instead of home.
func WithStartDir(dir string) Option {
	return func(s *Session) { s.dir = dir }
}

// New returns a session rooted at home. The start directory must exist and
// be a directory.
func New(home string, opts ...Option) (*Session, error) {
	if home == "" {
		return nil, errors.New("home directory is empty")
	}
	s := &Session{home: filepath.Clean(home)}
	for _, o := range opts {
		o(s)
	}
	if s.dir == "" {
		s.dir = s.home
	}
	abs, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}
	if err := checkDir(abs, abs); err != nil {
		return nil, fmt.Errorf("start directory: %w", err)
	}
	s.dir = abs
	return s, nil
}

// Dir returns the current directory.
func (s *Session) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// Home returns the home directory used for ~ expansion.
func (s *Session) Home() string {
	return s.home
}

// OnChange registers l for directory-changed notifications.
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Resolve turns a cd argument into an absolute path without touching the
// filesystem. The "-" form is rejected. Only "~" and "~/..." expand to home;
// "~name" is an ordinary relative name.
func (s *Session) Resolve(expr string) (string, error) {
	cur := s.Dir()
	switch {
	case expr == "~":
		return s.home, nil
	case expr == "-":
		return "", &DirError{Kind: NotImplemented, Expr: expr}
	case expr == "..":
		return filepath.Dir(cur), nil
	case expr == ".":
		return cur, nil
	case strings.HasPrefix(expr, "~/"):
		return filepath.Join(s.home, expr[2:]), nil
	case filepath.IsAbs(expr):
		return filepath.Clean(expr), nil
	}
	return filepath.Join(cur, expr), nil
}

// ChangeDirectory resolves expr against the current directory, verifies the
// target is an existing directory and makes it current.
func (s *Session) ChangeDirectory(expr string) (string, error) {
	target, err := s.Resolve(expr)
	if err != nil {
		return "", err
	}
	if err := checkDir(target, expr); err != nil {
		log.Debug("cd rejected", "expr", expr, "target", target, "err", err)
		return "", err
	}
	s.set(target)
	return target, nil
}

// Reconcile replaces the current directory with dir as reported by a probe.
// The value is trusted and not checked. It reports whether anything changed.
func (s *Session) Reconcile(dir string) bool {
	if dir == "" || !filepath.IsAbs(dir) {
		return false
	}
	return s.set(filepath.Clean(dir))
}

func (s *Session) set(dir string) bool {
	s.mu.Lock()
	if dir == s.dir {
		s.mu.Unlock()
		return false
	}
	prev := s.dir
	s.dir = dir
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	log.Info("directory changed", "from", prev, "to", dir)
	for _, l := range listeners {
		l(dir)
	}
	return true
}

// checkDir maps the state of path to a DirError labelled with expr.
func checkDir(path, expr string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &DirError{Kind: NoSuchDirectory, Expr: expr, Err: err}
	}
	if !info.IsDir() {
		return &DirError{Kind: NotADirectory, Expr: expr}
	}
	return nil
}
