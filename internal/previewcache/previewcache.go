// Package previewcache caches the preview server's two expensive
// products: rendered PNG tiles (bigcache, TTL-evicted, sized in MB) and
// decoded raw plane buffers (golang-lru/v2, genuinely access-ordered —
// unlike internal/filecache's FIFO policy, a decoded plane that keeps
// getting re-requested should stay hot).
package previewcache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config configures both cache tiers.
type Config struct {
	TileCacheSizeMB int
	TileTTL         time.Duration
	PlaneCacheEntries int
}

// Manager owns the tile and plane caches for one preview server instance.
type Manager struct {
	tiles  *bigcache.BigCache
	planes *lru.Cache[string, []byte]
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	tileConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.TileTTL,
		CleanWindow:        cfg.TileTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       1024 * 1024,
		HardMaxCacheSize:   cfg.TileCacheSizeMB,
	}
	tiles, err := bigcache.New(context.Background(), tileConfig)
	if err != nil {
		return nil, fmt.Errorf("previewcache: tile cache init: %w", err)
	}

	planes, err := lru.New[string, []byte](cfg.PlaneCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("previewcache: plane cache init: %w", err)
	}

	return &Manager{tiles: tiles, planes: planes}, nil
}

// TileKey identifies one rendered PNG tile: slide, series, position,
// timepoint, z, channel set and colormap all affect the rendered bytes.
func TileKey(slide string, series, position, t, z int, channels []int, colormap string) string {
	return fmt.Sprintf("tile:%s:%d:%d:%d:%d:%v:%s", slide, series, position, t, z, channels, colormap)
}

// PlaneKey identifies one decoded raw plane buffer.
func PlaneKey(slide string, series, position, t, z, c int) string {
	return fmt.Sprintf("plane:%s:%d:%d:%d:%d:%d", slide, series, position, t, z, c)
}

// GetTile retrieves a rendered tile, if cached.
func (m *Manager) GetTile(key string) ([]byte, bool) {
	data, err := m.tiles.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetTile stores a rendered tile.
func (m *Manager) SetTile(key string, data []byte) error {
	return m.tiles.Set(key, data)
}

// GetPlane retrieves a decoded plane buffer, if cached.
func (m *Manager) GetPlane(key string) ([]byte, bool) {
	return m.planes.Get(key)
}

// SetPlane stores a decoded plane buffer.
func (m *Manager) SetPlane(key string, data []byte) {
	m.planes.Add(key, data)
}

// Close releases the tile cache's background resources.
func (m *Manager) Close() error {
	return m.tiles.Close()
}
