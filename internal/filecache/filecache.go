// Package filecache implements the bounded FIFO cache of open
// random-access file handles (spec §4.5): a path->stream map plus an
// insertion-ordered counter->path map, evicting the oldest entry by
// insertion order (never by access order) once the cache exceeds its
// capacity. This is deliberately NOT github.com/hashicorp/golang-lru/v2 —
// that library is strictly access-ordered, the wrong eviction policy for
// this component (see DESIGN.md).
package filecache

import (
	"container/list"
	"os"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

// DefaultCapacity is the maximum number of simultaneously open streams
// (spec §4.5, §8 invariant 6).
const DefaultCapacity = 100

type entry struct {
	path string
	file *os.File
}

// Cache is a FIFO-evicting cache of open *os.File handles keyed by path.
// Not safe for concurrent use (spec §5: the reader is single-threaded
// cooperative; callers serialise access).
type Cache struct {
	capacity int
	order    *list.List // front = oldest, back = newest
	byPath   map[string]*list.Element
}

// New returns a Cache with the given capacity. capacity<=0 uses DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		byPath:   make(map[string]*list.Element),
	}
}

// Open returns the cached handle for path, opening it (read-only) on a
// miss. A miss that would exceed capacity evicts the oldest-inserted
// handle first. A hit does NOT move the entry — eviction order tracks
// first-open order, never last-access order.
func (c *Cache) Open(path string) (*os.File, error) {
	if el, ok := c.byPath[path]; ok {
		return el.Value.(*entry).file, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, sberr.New(sberr.Io, "filecache.Open", err)
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushBack(&entry{path: path, file: f})
	c.byPath[path] = el
	return f, nil
}

func (c *Cache) evictOldest() {
	oldest := c.order.Front()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	e.file.Close()
	delete(c.byPath, e.path)
	c.order.Remove(oldest)
}

// Len returns the number of currently open streams.
func (c *Cache) Len() int { return c.order.Len() }

// Invalidate closes and evicts path's handle, if present, forcing the
// next Open to reopen it. Used when a file is known to have been
// replaced on disk.
func (c *Cache) Invalidate(path string) {
	el, ok := c.byPath[path]
	if !ok {
		return
	}
	el.Value.(*entry).file.Close()
	delete(c.byPath, path)
	c.order.Remove(el)
}

// Close closes every open stream and empties the cache.
func (c *Cache) Close() error {
	var firstErr error
	for el := c.order.Front(); el != nil; el = el.Next() {
		if err := el.Value.(*entry).file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.order.Init()
	c.byPath = make(map[string]*list.Element)
	return firstErr
}
