package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes Load per source file. An entry is reused while the file's
// modification time and size are unchanged; any change triggers a reload on the
// next Get. Concurrent Gets for the same revision share a single load.
type Cache struct {
	opt    LoadOptions
	load   func(string, LoadOptions) (*Table, error)
	mu     sync.Mutex
	tables map[string]*Table
	group  singleflight.Group
}

// NewCache returns an empty cache that loads with opt.
func NewCache(opt LoadOptions) *Cache {
	return &Cache{opt: opt, load: Load, tables: map[string]*Table{}}
}

// Get returns the normalized table for path, loading it if the cached copy is
// missing or stale. The returned table must not be modified.
func (c *Cache) Get(path string) (*Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	rev := Revision{Path: abs, ModTime: info.ModTime().UnixNano(), Size: info.Size()}

	if t := c.cached(abs, rev); t != nil {
		return t, nil
	}

	key := abs + "|" + strconv.FormatInt(rev.ModTime, 10) + "|" + strconv.FormatInt(rev.Size, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// a flight for this revision may have finished since the check above
		if t := c.cached(abs, rev); t != nil {
			return t, nil
		}
		t, err := c.load(abs, c.opt)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[abs] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

func (c *Cache) cached(abs string, rev Revision) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tables[abs]; t != nil && t.Revision == rev {
		return t
	}
	return nil
}

// Invalidate drops any cached table for path.
func (c *Cache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	delete(c.tables, abs)
	c.mu.Unlock()
}

// Len reports how many tables are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}
