package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/metrics"
	"editorsync/internal/timemodel"
	"editorsync/internal/tracker"
)

var (
	ErrTrackNotFound   = errors.New("track not found")
	ErrTrackEmpty      = errors.New("track has no videos")
	ErrSectionNotFound = errors.New("section not found")
)

// Bridge arbitrates between the player context, the sector cache and the
// media elements.
//
// A seek updates, in order, the sector cache, the player context and the
// active media element.
type Bridge struct {
	store    *editor.Store
	player   PlayerContext
	cache    *SectorCache
	elements *Elements
	bus      *events.Bus
	logger   zerolog.Logger
	dedup    *events.Deduper

	// seekMu serialises seeks and track switches so the three-step update
	// of one request never interleaves with another.
	seekMu      sync.Mutex
	unsubscribe func()
}

func New(store *editor.Store, cache *SectorCache, elements *Elements, bus *events.Bus, c clock.Clock, dedupWindow time.Duration, logger zerolog.Logger) *Bridge {
	if dedupWindow <= 0 {
		dedupWindow = 100 * time.Millisecond
	}
	b := &Bridge{
		store:    store,
		player:   NewStorePlayer(store),
		cache:    cache,
		elements: elements,
		bus:      bus,
		logger:   logger.With().Str("component", "bridge").Logger(),
		dedup:    events.NewDeduper(c, dedupWindow),
	}
	b.unsubscribe = bus.Subscribe(events.TopicSaveAllSectorsTime, b.onSaveAllSectorsTime)
	return b
}

// Cache exposes the sector cache.
func (b *Bridge) Cache() *SectorCache { return b.cache }

// ActiveVideo returns the active video.
func (b *Bridge) ActiveVideo() (editor.MediaFile, bool) {
	return b.store.Snapshot().ActiveVideo()
}

// Element returns the media element for a video, wiring its progress
// callback on first use.
func (b *Bridge) Element(videoID string) (MediaElement, bool) {
	el, created, ok := b.elements.Get(videoID)
	if !ok {
		return nil, false
	}
	if created {
		el.OnTimeUpdate(func(local float64) { b.TimeUpdate(videoID, local) })
	}
	return el, true
}

// DisplayTime returns the offset a section should display. A valid cached
// offset wins. Otherwise the player time is converted relative to the
// section base.
func (b *Bridge) DisplayTime(section editor.Section) float64 {
	if d, ok := b.cache.Get(section.ID); ok {
		return d
	}
	state := b.store.Snapshot()
	return offset(state.CurrentTime, sectionBase(section, state))
}

// SectionTime returns the time to position the section's scrub bar with,
// in the section's own domain.
func (b *Bridge) SectionTime(section editor.Section) float64 {
	state := b.store.Snapshot()
	base := sectionBase(section, state)
	if d, ok := b.cache.Get(section.ID); ok {
		return base + d
	}
	if cur := state.CurrentTime; timemodel.IsAbsolute(cur) == section.Absolute() {
		return cur
	}
	return base
}

// sectionBase is the active video's start when it plays in an absolute
// section, and the section start otherwise.
func sectionBase(section editor.Section, state editor.State) float64 {
	if section.Absolute() {
		if v, ok := state.ActiveVideo(); ok && v.SectorID() == section.ID {
			return v.StartTime
		}
	}
	return section.Start
}

// offset is t measured from base. Values in different domains, or before
// base, yield 0.
func offset(t, base float64) float64 {
	if !timemodel.Finite(t) || !timemodel.Finite(base) {
		return 0
	}
	if timemodel.IsAbsolute(t) != timemodel.IsAbsolute(base) || t < base {
		return 0
	}
	return t - base
}

// Seek applies a seek request.
func (b *Bridge) Seek(req tracker.SeekRequest) {
	if req.SectorID == "" || !timemodel.Finite(req.Target) || !timemodel.Finite(req.DisplayTime) {
		b.logger.Debug().Interface("request", req).Msg("ignoring malformed seek")
		return
	}

	b.seekMu.Lock()
	state := b.store.Snapshot()
	if !req.Final && !state.IsSeeking {
		b.store.Dispatch(editor.SetIsSeeking{Value: true})
	}

	b.cache.Set(req.SectorID, req.DisplayTime)
	b.player.SetCurrentTime(req.Target)
	if v, ok := state.ActiveVideo(); ok && v.SectorID() == req.SectorID {
		if el, ok := b.Element(v.ID); ok {
			el.SetCurrentTime(timemodel.Clamp(req.Target-v.StartTime, 0, v.Duration))
		}
	}

	if req.Final {
		b.store.Dispatch(editor.EndSeeking{})
		metrics.Seeks.WithLabelValues("final").Inc()
	} else {
		metrics.Seeks.WithLabelValues("live").Inc()
	}
	b.seekMu.Unlock()

	if req.Final {
		b.cache.Persist(context.Background(), req.SectorID)
	}
	b.bus.Publish(events.SectorTimeChange{SectorID: req.SectorID, Time: req.DisplayTime, IsActiveOnly: true})
}

// SeekTime seeks the player to a timeline time, deriving the sector and
// display offset from the active video or the section containing t.
func (b *Bridge) SeekTime(t float64) error {
	if !timemodel.Finite(t) || t < 0 {
		return nil
	}
	state := b.store.Snapshot()
	sections := editor.Sections(state.Tracks)

	var section editor.Section
	found := false
	if v, ok := state.ActiveVideo(); ok {
		section, found = editor.SectionOf(sections, v)
	}
	if !found || t < section.Start || t > section.End {
		found = false
		for _, s := range sections {
			if t >= s.Start && t <= s.End {
				section, found = s, true
				break
			}
		}
	}
	if !found {
		b.player.SetCurrentTime(t)
		return ErrSectionNotFound
	}

	base := sectionBase(section, state)
	b.Seek(tracker.SeekRequest{
		SectorID:    section.ID,
		DisplayTime: offset(t, base),
		Target:      t,
		Absolute:    section.Absolute(),
		Final:       true,
	})
	return nil
}

// BroadcastSectorTime applies a sector time announced by a client and
// relays it. A broadcast that is not active-only updates every section.
func (b *Bridge) BroadcastSectorTime(ev events.SectorTimeChange) {
	if !ev.Valid() {
		return
	}
	if ev.IsActiveOnly {
		b.cache.Set(ev.SectorID, ev.Time)
	} else {
		var ids []string
		for _, s := range editor.Sections(b.store.Snapshot().Tracks) {
			ids = append(ids, s.ID)
		}
		b.cache.SetAll(append(ids, ev.SectorID), ev.Time)
	}
	b.bus.Publish(ev)
}

// SwitchTrack makes trackID active, keeping the playback position when the
// track has a video at the current time and falling back to the start of
// its first video otherwise. Playback resumes only if it was running.
func (b *Bridge) SwitchTrack(trackID string) error {
	b.seekMu.Lock()
	defer b.seekMu.Unlock()

	state := b.store.Snapshot()
	track, ok := state.Track(trackID)
	if !ok {
		b.logger.Warn().Str("track", trackID).Msg("track switch to unknown track")
		return ErrTrackNotFound
	}

	outgoing, hadOutgoing := state.ActiveVideo()
	if hadOutgoing {
		display := b.displayFor(state, outgoing)
		b.bus.Publish(events.SaveAllSectorsTime{VideoID: outgoing.ID, DisplayTime: display})
	}

	t := state.CurrentTime
	next, found := track.VideoAt(t)
	if !found {
		first, ok := track.FirstVideo()
		if !ok {
			b.store.Dispatch(editor.SetActiveTrack{TrackID: trackID})
			return ErrTrackEmpty
		}
		next, t = first, first.StartTime
	}

	b.store.Dispatch(editor.SetIsChangingCamera{Value: true})

	sections := editor.Sections(state.Tracks)
	if section, ok := editor.SectionOf(sections, next); ok {
		base := section.Start
		if section.Absolute() {
			base = next.StartTime
		}
		b.cache.Set(section.ID, offset(t, base))
	}
	b.store.Dispatch(
		editor.SetActiveTrack{TrackID: trackID},
		editor.SetActiveVideo{VideoID: next.ID},
	)
	if t != state.CurrentTime {
		b.player.SetCurrentTime(t)
	}

	el, hasEl := b.Element(next.ID)
	if hasEl {
		el.SetCurrentTime(timemodel.Clamp(t-next.StartTime, 0, next.Duration))
	}
	if state.IsPlaying {
		if hadOutgoing && outgoing.ID != next.ID {
			if old, ok := b.Element(outgoing.ID); ok {
				old.Pause()
			}
		}
		if hasEl {
			el.Play()
		}
	}

	b.store.Dispatch(editor.SetIsChangingCamera{Value: false})
	b.logger.Debug().
		Str("track", trackID).
		Str("video", next.ID).
		Bool("preserved", found).
		Msg("switched track")
	return nil
}

// displayFor returns the display offset of video at the current time.
func (b *Bridge) displayFor(state editor.State, v editor.MediaFile) float64 {
	section, ok := editor.SectionOf(editor.Sections(state.Tracks), v)
	if ok {
		if d, cached := b.cache.Get(section.ID); cached {
			return d
		}
	}
	return timemodel.Clamp(offset(state.CurrentTime, v.StartTime), 0, v.Duration)
}

// TimeUpdate folds element progress for the active video into the cache
// and the player context. Reports for other videos, or while seeking or
// switching, are ignored.
func (b *Bridge) TimeUpdate(videoID string, local float64) {
	if !timemodel.Finite(local) || local < 0 {
		return
	}
	b.seekMu.Lock()
	defer b.seekMu.Unlock()

	state := b.store.Snapshot()
	if state.ActiveVideoID != videoID || state.IsSeeking || state.IsChangingCamera {
		return
	}
	v, ok := state.ActiveVideo()
	if !ok {
		return
	}
	local = timemodel.Clamp(local, 0, v.Duration)
	t := v.StartTime + local

	if section, ok := editor.SectionOf(editor.Sections(state.Tracks), v); ok {
		base := section.Start
		if section.Absolute() {
			base = v.StartTime
		}
		b.cache.Set(section.ID, offset(t, base))
	}
	b.player.SetCurrentTime(t)
}

// Ended advances to the next video on the active video's track, or stops
// playback at the end of the track.
func (b *Bridge) Ended(videoID string) {
	b.seekMu.Lock()
	defer b.seekMu.Unlock()

	state := b.store.Snapshot()
	if state.ActiveVideoID != videoID {
		return
	}
	track, ok := state.TrackOfVideo(videoID)
	if !ok {
		return
	}
	for i, v := range track.Videos {
		if v.ID != videoID || i+1 >= len(track.Videos) {
			continue
		}
		next := track.Videos[i+1]
		b.store.Dispatch(editor.SetActiveVideo{VideoID: next.ID})
		b.player.SetCurrentTime(next.StartTime)
		if el, ok := b.Element(next.ID); ok {
			el.SetCurrentTime(0)
			if state.IsPlaying {
				el.Play()
			}
		}
		return
	}
	b.player.SetPlaying(false)
}

// SetPlaying starts or stops playback of the active video.
func (b *Bridge) SetPlaying(playing bool) {
	b.player.SetPlaying(playing)
	v, ok := b.ActiveVideo()
	if !ok {
		return
	}
	if el, ok := b.Element(v.ID); ok {
		if playing {
			el.Play()
		} else {
			el.Pause()
		}
	}
}

// SetVolume sets the master volume on the player and the active element.
func (b *Bridge) SetVolume(v float64) {
	b.store.Dispatch(editor.SetVolume{Volume: v})
	if active, ok := b.ActiveVideo(); ok {
		if el, ok := b.Element(active.ID); ok {
			el.SetVolume(b.store.Snapshot().Volume)
		}
	}
}

func (b *Bridge) onSaveAllSectorsTime(ev events.Event) {
	e, ok := ev.(events.SaveAllSectorsTime)
	if !ok || b.dedup.Duplicate(e) {
		return
	}
	state := b.store.Snapshot()
	v, ok := state.Video(e.VideoID)
	if !ok {
		return
	}
	section, ok := editor.SectionOf(editor.Sections(state.Tracks), v)
	if !ok {
		return
	}
	b.cache.Set(section.ID, e.DisplayTime)
	b.cache.Persist(context.Background(), section.ID)
}

// Close detaches the bridge from the bus.
func (b *Bridge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}
