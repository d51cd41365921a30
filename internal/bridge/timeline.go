package bridge

import (
	"sync"

	"github.com/rs/zerolog"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/tracker"
)

// SectionView is a section with its current scrub position.
type SectionView struct {
	editor.Section
	Percent     float64 `json:"percent"`
	DisplayTime float64 `json:"displayTime"`
	State       string  `json:"state"`
}

// Timeline keeps one tracker per section in step with the editor tracks.
type Timeline struct {
	mu       sync.Mutex
	trackers map[string]*tracker.Tracker
	order    []string

	store  *editor.Store
	bridge *Bridge
	bus    *events.Bus
	clock  clock.Clock
	cfg    tracker.Config
	logger zerolog.Logger

	unobserve func()
}

func NewTimeline(store *editor.Store, b *Bridge, bus *events.Bus, c clock.Clock, cfg tracker.Config, logger zerolog.Logger) *Timeline {
	tl := &Timeline{
		trackers: make(map[string]*tracker.Tracker),
		store:    store,
		bridge:   b,
		bus:      bus,
		clock:    c,
		cfg:      cfg,
		logger:   logger.With().Str("component", "timeline").Logger(),
	}
	tl.sync(store.Snapshot().Tracks)
	tl.unobserve = store.Observe(tl.onChange)
	return tl
}

func (tl *Timeline) onChange(c editor.Change) {
	switch c.Action.Kind() {
	case editor.KindSetTracks, editor.KindAddNewTracks, editor.KindRestoreDocument:
		tl.sync(c.Next.Tracks)
	}
	if c.Prev.IsPlaying != c.Next.IsPlaying {
		for _, t := range tl.all() {
			t.SetPlaying(c.Next.IsPlaying)
		}
	}
}

// sync creates, updates and closes trackers so there is exactly one per
// section.
func (tl *Timeline) sync(tracks []editor.Track) {
	sections := editor.Sections(tracks)
	playing := tl.store.Snapshot().IsPlaying

	tl.mu.Lock()
	keep := make(map[string]bool, len(sections))
	var created, updated []*tracker.Tracker
	order := make([]string, 0, len(sections))
	for _, s := range sections {
		keep[s.ID] = true
		order = append(order, s.ID)
		if t, ok := tl.trackers[s.ID]; ok {
			t.SetSection(s)
			updated = append(updated, t)
			continue
		}
		t := tracker.New(s, tl.bridge, tl.bridge, tl.bus, tl.clock, tl.cfg, tl.logger)
		tl.trackers[s.ID] = t
		created = append(created, t)
	}
	var stale []*tracker.Tracker
	for id, t := range tl.trackers {
		if !keep[id] {
			stale = append(stale, t)
			delete(tl.trackers, id)
		}
	}
	tl.order = order
	tl.mu.Unlock()

	for _, t := range stale {
		t.Close()
	}
	for _, t := range created {
		t.Recompute(true)
		if playing {
			t.SetPlaying(true)
		}
	}
	for _, t := range updated {
		t.Recompute(true)
	}
	if len(created) > 0 || len(stale) > 0 {
		tl.logger.Debug().
			Int("sections", len(order)).
			Int("added", len(created)).
			Int("removed", len(stale)).
			Msg("timeline sections updated")
	}
}

func (tl *Timeline) all() []*tracker.Tracker {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]*tracker.Tracker, 0, len(tl.order))
	for _, id := range tl.order {
		out = append(out, tl.trackers[id])
	}
	return out
}

// Tracker returns the tracker of a section.
func (tl *Timeline) Tracker(sectionID string) (*tracker.Tracker, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	t, ok := tl.trackers[sectionID]
	return t, ok
}

// Sections lists the sections in timeline order.
func (tl *Timeline) Sections() []SectionView {
	trackers := tl.all()
	out := make([]SectionView, 0, len(trackers))
	for _, t := range trackers {
		s := t.Section()
		out = append(out, SectionView{
			Section:     s,
			Percent:     t.Position(),
			DisplayTime: tl.bridge.DisplayTime(s),
			State:       t.State().String(),
		})
	}
	return out
}

// Close stops every tracker and detaches from the store.
func (tl *Timeline) Close() {
	if tl.unobserve != nil {
		tl.unobserve()
	}
	tl.mu.Lock()
	trackers := tl.trackers
	tl.trackers = make(map[string]*tracker.Tracker)
	tl.order = nil
	tl.mu.Unlock()
	for _, t := range trackers {
		t.Close()
	}
}
