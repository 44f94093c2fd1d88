package complete

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// maxCachedDirs bounds the number of listings (and watches) kept.
const maxCachedDirs = 64

// CachedLister keeps directory listings in memory and drops a listing as
// soon as fsnotify reports any change inside that directory. Stat is not
// cached.
type CachedLister struct {
	base    Lister
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	entries map[string][]fs.DirEntry
	gen     map[string]uint64 // watched dirs; bumped on every change

	done chan struct{}
	wg   sync.WaitGroup
}

// NewCachedLister wraps base. Close releases the watcher.
func NewCachedLister(base Lister) (*CachedLister, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	c := &CachedLister{
		base:    base,
		watcher: w,
		entries: make(map[string][]fs.DirEntry),
		gen:     make(map[string]uint64),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c, nil
}

// ReadDir returns the cached listing of dir, reading and watching it on a miss.
func (c *CachedLister) ReadDir(dir string) ([]fs.DirEntry, error) {
	dir = filepath.Clean(dir)
	c.mu.Lock()
	if entries, ok := c.entries[dir]; ok {
		c.mu.Unlock()
		return entries, nil
	}
	_, watched := c.gen[dir]
	if !watched {
		c.gen[dir] = 0
	}
	c.mu.Unlock()

	// Watch before reading so no change can fall between the two.
	if !watched {
		if err := c.watcher.Add(dir); err != nil {
			log.Debug("not caching unwatchable directory", "dir", dir, "err", err)
			c.forget(dir)
			return c.base.ReadDir(dir)
		}
	}
	c.mu.Lock()
	gen := c.gen[dir]
	c.mu.Unlock()

	entries, err := c.base.ReadDir(dir)
	if err != nil {
		c.forget(dir)
		_ = c.watcher.Remove(dir)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.gen[dir]; !ok || cur != gen {
		// Changed or evicted while reading; the listing may be stale.
		return entries, nil
	}
	if len(c.entries) >= maxCachedDirs {
		for victim := range c.entries {
			delete(c.entries, victim)
			delete(c.gen, victim)
			_ = c.watcher.Remove(victim)
			break
		}
	}
	c.entries[dir] = entries
	return entries, nil
}

func (c *CachedLister) forget(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gen, dir)
	delete(c.entries, dir)
}

func (c *CachedLister) Stat(path string) (fs.FileInfo, error) {
	return c.base.Stat(path)
}

// Cached reports whether dir currently has a listing in memory.
func (c *CachedLister) Cached(dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[filepath.Clean(dir)]
	return ok
}

// Close stops the watcher goroutine.
func (c *CachedLister) Close() error {
	close(c.done)
	err := c.watcher.Close()
	c.wg.Wait()
	return err
}

func (c *CachedLister) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.invalidate(filepath.Dir(ev.Name))
			// The watched directory itself may have gone away, taking its
			// watch with it.
			c.invalidate(ev.Name)
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				c.forget(filepath.Clean(ev.Name))
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("completion cache watcher error", "err", err)
		}
	}
}

func (c *CachedLister) invalidate(dir string) {
	dir = filepath.Clean(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.gen[dir]; ok {
		c.gen[dir]++
	}
	delete(c.entries, dir)
}
