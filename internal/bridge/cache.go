// Package bridge keeps the player context, the per-sector cached display
// time and the media elements consistent across seeks, playback and track
// switches.
package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"editorsync/internal/timemodel"
)

// PositionStore persists sector positions across restarts.
type PositionStore interface {
	SaveSectorPosition(ctx context.Context, sectorID string, displayTime float64) error
	SectorPositions(ctx context.Context) (map[string]float64, error)
}

// SectorCache maps a sector id to its last display offset.
type SectorCache struct {
	mu     sync.RWMutex
	times  map[string]float64
	store  PositionStore
	logger zerolog.Logger
}

// NewSectorCache returns a cache. store may be nil.
func NewSectorCache(store PositionStore, logger zerolog.Logger) *SectorCache {
	return &SectorCache{
		times:  make(map[string]float64),
		store:  store,
		logger: logger,
	}
}

// Load seeds the cache from the position store.
func (c *SectorCache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	positions, err := c.store.SectorPositions(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range positions {
		if valid(t) {
			c.times[id] = t
		}
	}
	return nil
}

// Get returns the cached display offset for a sector.
func (c *SectorCache) Get(sectorID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.times[sectorID]
	return t, ok && valid(t)
}

// Set stores a display offset. Invalid values are ignored.
func (c *SectorCache) Set(sectorID string, t float64) {
	if sectorID == "" || !valid(t) {
		return
	}
	c.mu.Lock()
	c.times[sectorID] = t
	c.mu.Unlock()
}

// SetAll stores t for every listed sector.
func (c *SectorCache) SetAll(sectorIDs []string, t float64) {
	if !valid(t) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range sectorIDs {
		c.times[id] = t
	}
}

// All returns a copy of the cache.
func (c *SectorCache) All() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.times))
	for k, v := range c.times {
		out[k] = v
	}
	return out
}

// Persist writes the cached offset of one sector to the position store.
func (c *SectorCache) Persist(ctx context.Context, sectorID string) {
	if c.store == nil {
		return
	}
	t, ok := c.Get(sectorID)
	if !ok {
		return
	}
	if err := c.store.SaveSectorPosition(ctx, sectorID, t); err != nil {
		c.logger.Error().Err(err).Str("sector", sectorID).Msg("failed to persist sector position")
	}
}

func valid(t float64) bool {
	return timemodel.Finite(t) && t >= 0
}
