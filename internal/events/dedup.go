package events

import (
	"sync"
	"time"

	"editorsync/internal/clock"
	"editorsync/internal/metrics"
)

// Deduper suppresses an event whose key matches the previous event of the
// same topic seen within the window.
type Deduper struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	last   map[Topic]seen
}

type seen struct {
	key string
	at  time.Time
}

func NewDeduper(c clock.Clock, window time.Duration) *Deduper {
	return &Deduper{clock: c, window: window, last: make(map[Topic]seen)}
}

// Duplicate reports whether ev repeats the last event of its topic within
// the window. A non-duplicate becomes the new reference.
func (d *Deduper) Duplicate(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	key := ev.Key()
	if prev, ok := d.last[ev.Topic()]; ok && prev.key == key && now.Sub(prev.at) < d.window {
		metrics.BusDeduplicated.WithLabelValues(string(ev.Topic())).Inc()
		return true
	}
	d.last[ev.Topic()] = seen{key: key, at: now}
	return false
}
