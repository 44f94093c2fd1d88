package complete

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedListerServesRepeatReadsFromMemory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one"), nil, 0o644))

	base := &countingLister{base: OSLister{}}
	c, err := NewCachedLister(base)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 3; i++ {
		entries, err := c.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}
	assert.EqualValues(t, 1, base.reads.Load())
	assert.True(t, c.Cached(dir))
}

func TestCachedListerInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCachedLister(OSLister{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	entries, err := c.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), nil, 0o644))

	require.Eventually(t, func() bool { return !c.Cached(dir) }, 5*time.Second, 10*time.Millisecond)

	entries, err = c.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new.txt", entries[0].Name())
}

// lateWriter adds a file right after its first listing, before the cache
// stores that listing.
type lateWriter struct {
	OSLister
	once sync.Once
}

func (l *lateWriter) ReadDir(dir string) ([]fs.DirEntry, error) {
	entries, err := l.OSLister.ReadDir(dir)
	l.once.Do(func() {
		_ = os.WriteFile(filepath.Join(dir, "late.txt"), nil, 0o644)
	})
	return entries, err
}

func TestCachedListerSeesChangeDuringRead(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCachedLister(&lateWriter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	entries, err := c.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Eventually(t, func() bool {
		entries, err := c.ReadDir(dir)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCachedListerSkipsListingChangedDuringRead(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCachedLister(OSLister{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	// Register dir as watched, then bump its generation mid-read.
	_, err = c.ReadDir(dir)
	require.NoError(t, err)
	c.invalidate(dir)

	c.base = listerFunc(func(d string) ([]fs.DirEntry, error) {
		entries, err := os.ReadDir(d)
		c.invalidate(d)
		return entries, err
	})
	_, err = c.ReadDir(dir)
	require.NoError(t, err)
	assert.False(t, c.Cached(dir))
}

type listerFunc func(dir string) ([]fs.DirEntry, error)

func (f listerFunc) ReadDir(dir string) ([]fs.DirEntry, error) { return f(dir) }
func (f listerFunc) Stat(path string) (fs.FileInfo, error)     { return os.Stat(path) }

func TestCachedListerDoesNotCacheErrors(t *testing.T) {
	c, err := NewCachedLister(OSLister{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	missing := filepath.Join(t.TempDir(), "missing")
	_, err = c.ReadDir(missing)
	require.Error(t, err)
	assert.False(t, c.Cached(missing))
}

func TestResolverWithCachedLister(t *testing.T) {
	home := newHome(t)
	c, err := NewCachedLister(OSLister{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	r := New(dirs{dir: home, home: home}, WithLister(c))
	first := r.Resolve("cat Doc")
	second := r.Resolve("cat Doc")
	assert.Equal(t, first.Matches, second.Matches)
	assert.Len(t, second.Matches, 2)
}
