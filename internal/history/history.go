// Package history keeps the list of submitted command lines and the cursor
// used for up/down navigation in the popup.
package history

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Log is an ordered list of command lines, oldest first. It is not safe for
// concurrent use; the popup owns it.
type Log struct {
	// Limit caps the number of entries kept. Zero means unlimited.
	Limit int

	entries []string
	cursor  int    // len(entries) when not navigating
	draft   string // line being typed before navigation started
}

// New returns a Log seeded with entries.
func New(limit int, entries []string) *Log {
	l := &Log{Limit: limit}
	for _, e := range entries {
		l.push(e)
	}
	l.Reset()
	return l
}

// Add records cmd unless it is blank or repeats the newest entry, and ends
// any navigation in progress.
func (l *Log) Add(cmd string) bool {
	added := l.push(cmd)
	l.Reset()
	return added
}

func (l *Log) push(cmd string) bool {
	if strings.TrimSpace(cmd) == "" {
		return false
	}
	if n := len(l.entries); n > 0 && l.entries[n-1] == cmd {
		return false
	}
	l.entries = append(l.entries, cmd)
	if l.Limit > 0 && len(l.entries) > l.Limit {
		l.entries = append([]string(nil), l.entries[len(l.entries)-l.Limit:]...)
	}
	return true
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []string {
	return append([]string(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Reset leaves navigation mode.
func (l *Log) Reset() {
	l.cursor = len(l.entries)
	l.draft = ""
}

// Prev moves to the previous entry. current is the line being edited; it is
// stashed on the first step back and restored by Next. ok is false when
// there is nothing older.
func (l *Log) Prev(current string) (string, bool) {
	if l.cursor == 0 {
		return "", false
	}
	if l.cursor == len(l.entries) {
		l.draft = current
	}
	l.cursor--
	return l.entries[l.cursor], true
}

// Next moves toward the newest entry, returning the stashed draft after the
// newest one. ok is false when not navigating.
func (l *Log) Next() (string, bool) {
	if l.cursor >= len(l.entries) {
		return "", false
	}
	l.cursor++
	if l.cursor == len(l.entries) {
		draft := l.draft
		l.draft = ""
		return draft, true
	}
	return l.entries[l.cursor], true
}

// entrySource presents entries newest first to the fuzzy matcher.
type entrySource []string

func (s entrySource) String(i int) string { return s[len(s)-1-i] }
func (s entrySource) Len() int            { return len(s) }

// Search returns entries fuzzily matching query, best first. Ties keep the
// more recent entry first. An empty query returns nothing.
func (l *Log) Search(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	src := entrySource(l.entries)
	matches := fuzzy.FindFrom(query, src)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		s := src.String(m.Index)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
