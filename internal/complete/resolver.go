// Package complete proposes filesystem completions for the last token of an
// in-progress command line.
package complete

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fakeyudi/quickterm/internal/logging"
)

var log = logging.ForComponent(logging.CompComplete)

// DirSource supplies the directories completion is relative to.
// *session.Session satisfies it.
type DirSource interface {
	Dir() string
	Home() string
}

// Lister is the filesystem access completion needs.
type Lister interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSLister reads the real filesystem.
type OSLister struct{}

func (OSLister) ReadDir(dir string) ([]fs.DirEntry, error) { return os.ReadDir(dir) }
func (OSLister) Stat(path string) (fs.FileInfo, error)     { return os.Stat(path) }

// Match is one candidate entry.
type Match struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDirectory"`
}

// Result is the answer to one completion request.
type Result struct {
	Input   string  `json:"originalInput"`
	Token   string  `json:"lastToken"`
	Prefix  string  `json:"-"` // the part of Token that matches were filtered by
	Base    string  `json:"-"` // directory that was listed
	Matches []Match `json:"matches"`
}

// Resolver answers completion requests.
type Resolver struct {
	src    DirSource
	lister Lister
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLister replaces the filesystem used for listing and probing.
func WithLister(l Lister) Option {
	return func(r *Resolver) { r.lister = l }
}

// New returns a Resolver reading directories from src.
func New(src DirSource, opts ...Option) *Resolver {
	r := &Resolver{src: src, lister: OSLister{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LastToken returns the text after the final run of whitespace in input.
func LastToken(input string) string {
	i := strings.LastIndexFunc(input, unicode.IsSpace)
	if i < 0 {
		return input
	}
	_, size := utf8.DecodeRuneInString(input[i:])
	return input[i+size:]
}

// Resolve lists entries matching the last token of input. Errors reading
// the filesystem produce an empty list.
func (r *Resolver) Resolve(input string) Result {
	res := Result{Input: input, Token: LastToken(input), Matches: []Match{}}
	if strings.TrimSpace(res.Token) == "" {
		return res
	}
	res.Base, res.Prefix = r.split(res.Token)

	entries, err := r.lister.ReadDir(res.Base)
	if err != nil {
		log.Debug("completion listing failed", "dir", res.Base, "err", err)
		return res
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, res.Prefix) {
			continue
		}
		res.Matches = append(res.Matches, Match{Name: name, IsDir: r.isDir(filepath.Join(res.Base, name))})
	}
	sort.Slice(res.Matches, func(i, j int) bool { return res.Matches[i].Name < res.Matches[j].Name })
	return res
}

// split turns a token into the directory to list and the name prefix.
func (r *Resolver) split(token string) (base, prefix string) {
	home := r.src.Home()
	if token == "~" {
		return home, ""
	}
	idx := strings.LastIndex(token, "/")
	if idx < 0 {
		return r.src.Dir(), token
	}
	fragment, prefix := token[:idx], token[idx+1:]
	switch {
	case fragment == "" && filepath.IsAbs(token):
		return string(filepath.Separator), prefix
	case fragment == "~":
		return home, prefix
	case strings.HasPrefix(fragment, "~/"):
		return filepath.Join(home, fragment[2:]), prefix
	case filepath.IsAbs(fragment):
		return filepath.Clean(fragment), prefix
	}
	return filepath.Join(r.src.Dir(), fragment), prefix
}

// isDir follows symlinks; any error means "not a directory".
func (r *Resolver) isDir(path string) bool {
	info, err := r.lister.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
