package tracker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/timemodel"
)

// State is the tracker's interaction state.
type State int

const (
	StateIdle State = iota
	StateDragging
	StatePlayingSync
)

func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StatePlayingSync:
		return "playing-sync"
	default:
		return "idle"
	}
}

// Rect is the horizontal extent of the scrub track in client pixels.
type Rect struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// SeekRequest is the outcome of a drag: the display offset to cache for the
// sector and the timeline time to seek the player to.
type SeekRequest struct {
	SectorID    string  `json:"sectorId"`
	DisplayTime float64 `json:"displayTime"`
	Target      float64 `json:"target"`
	Absolute    bool    `json:"absolute"`
	VideoID     string  `json:"videoId,omitempty"`
	// Final marks the authoritative seek issued on pointer-up.
	Final bool `json:"final"`
}

// TimeSource supplies the time a section should display.
type TimeSource interface {
	// SectionTime returns the section's current time in the section's own
	// domain, suitable for positioning against section.Start.
	SectionTime(section editor.Section) float64
	ActiveVideo() (editor.MediaFile, bool)
}

// Seeker applies seek requests.
type Seeker interface {
	Seek(req SeekRequest)
}

// Config tunes recompute behaviour.
type Config struct {
	Epsilon       float64
	FrameInterval time.Duration
	DedupWindow   time.Duration
}

// Tracker follows one section.
type Tracker struct {
	mu      sync.Mutex
	section editor.Section
	source  TimeSource
	seeker  Seeker
	bus     *events.Bus
	clock   clock.Clock
	logger  zerolog.Logger
	dedup   *events.Deduper

	interval      time.Duration
	scrub         Scrub
	state         State
	playing       bool
	frame         clock.Timer
	frameGen      uint64
	lastRecompute time.Time
	closed        bool
	unsubscribe   func()
}

func New(section editor.Section, source TimeSource, seeker Seeker, bus *events.Bus, c clock.Clock, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 100 * time.Millisecond
	}
	t := &Tracker{
		section:  section,
		source:   source,
		seeker:   seeker,
		bus:      bus,
		clock:    c,
		logger:   logger.With().Str("section", section.ID).Logger(),
		dedup:    events.NewDeduper(c, cfg.DedupWindow),
		interval: cfg.FrameInterval,
		scrub:    Scrub{Epsilon: cfg.Epsilon},
	}
	t.unsubscribe = bus.Subscribe(events.TopicSectorTimeChange, t.onSectorTime)
	return t
}

// Section returns the tracked section.
func (t *Tracker) Section() editor.Section {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.section
}

// SetSection updates the bounds after the timeline changed.
func (t *Tracker) SetSection(s editor.Section) {
	t.mu.Lock()
	t.section = s
	t.mu.Unlock()
	t.Recompute(true)
}

// Position returns the last computed position in percent.
func (t *Tracker) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrub.Last()
}

// State returns the interaction state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetPlaying follows the global playback flag.
func (t *Tracker) SetPlaying(playing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.playing == playing {
		return
	}
	t.playing = playing
	if t.state == StateDragging {
		return
	}
	if playing {
		t.state = StatePlayingSync
		t.armFrameLocked()
		return
	}
	t.state = StateIdle
	t.stopFrameLocked()
}

// PointerDown starts a drag when x lies on the track.
func (t *Tracker) PointerDown(x float64, r Rect) (SeekRequest, bool) {
	t.mu.Lock()
	if t.closed || r.Width <= 0 || x < r.Left || x > r.Left+r.Width {
		t.mu.Unlock()
		return SeekRequest{}, false
	}
	t.state = StateDragging
	t.stopFrameLocked()
	t.mu.Unlock()
	return t.drag(x, r, false)
}

// PointerMove seeks live while dragging.
func (t *Tracker) PointerMove(x float64, r Rect) (SeekRequest, bool) {
	if t.State() != StateDragging {
		return SeekRequest{}, false
	}
	return t.drag(x, r, false)
}

// PointerUp ends the drag with one authoritative seek.
func (t *Tracker) PointerUp(x float64, r Rect) (SeekRequest, bool) {
	t.mu.Lock()
	if t.state != StateDragging {
		t.mu.Unlock()
		return SeekRequest{}, false
	}
	if t.playing {
		t.state = StatePlayingSync
	} else {
		t.state = StateIdle
	}
	t.mu.Unlock()

	req, ok := t.drag(x, r, true)

	t.mu.Lock()
	if t.state == StatePlayingSync {
		t.armFrameLocked()
	}
	t.mu.Unlock()
	return req, ok
}

func (t *Tracker) drag(x float64, r Rect, final bool) (SeekRequest, bool) {
	t.mu.Lock()
	section := t.section
	t.mu.Unlock()

	active, hasActive := t.source.ActiveVideo()
	req, ok := Drag(x, r, section, active, hasActive)
	if !ok {
		return SeekRequest{}, false
	}
	req.Final = final

	t.mu.Lock()
	if section.Duration > 0 {
		t.scrub.set(timemodel.Clamp((x-r.Left)/r.Width, 0, 1) * 100)
	}
	pos := t.scrub.Last()
	t.mu.Unlock()

	t.seeker.Seek(req)
	t.bus.Publish(events.ScrubPosition{SectorID: section.ID, Percent: pos})
	return req, true
}

// Drag converts a pointer position into a seek request. Pointers outside
// the rect are clamped; a degenerate rect or section yields no request.
func Drag(x float64, r Rect, section editor.Section, active editor.MediaFile, hasActive bool) (SeekRequest, bool) {
	if r.Width <= 0 || !timemodel.Finite(x) || !timemodel.Finite(r.Left) || !timemodel.Finite(r.Width) {
		return SeekRequest{}, false
	}
	if !timemodel.Finite(section.Duration) || section.Duration < 0 {
		return SeekRequest{}, false
	}
	p := timemodel.Clamp((x-r.Left)/r.Width, 0, 1)
	offset := p * section.Duration

	req := SeekRequest{SectorID: section.ID}
	if !section.Absolute() {
		req.DisplayTime = offset
		req.Target = section.Start + offset
		return req, true
	}

	req.Absolute = true
	abs := timemodel.ToAbsolute(offset, section.Start)
	if hasActive && active.SectorID() == section.ID {
		display := timemodel.Clamp(abs-active.StartTime, 0, active.Duration)
		req.DisplayTime = display
		req.Target = active.StartTime + display
		req.VideoID = active.ID
		return req, true
	}
	req.DisplayTime = offset
	req.Target = abs
	return req, true
}

// Recompute refreshes the position from the time source. Unless forced it
// is throttled to one recompute per frame interval.
func (t *Tracker) Recompute(force bool) float64 {
	t.mu.Lock()
	if t.closed || t.state == StateDragging {
		pos := t.scrub.Last()
		t.mu.Unlock()
		return pos
	}
	now := t.clock.Now()
	if !force && now.Sub(t.lastRecompute) < t.interval {
		pos := t.scrub.Last()
		t.mu.Unlock()
		return pos
	}
	t.lastRecompute = now
	section := t.section
	before := t.scrub.Last()
	t.mu.Unlock()

	current := t.source.SectionTime(section)

	t.mu.Lock()
	pos := t.scrub.Compute(current, section.Start, section.Duration)
	t.mu.Unlock()

	if pos != before {
		t.bus.Publish(events.ScrubPosition{SectorID: section.ID, Percent: pos})
	}
	return pos
}

func (t *Tracker) onSectorTime(ev events.Event) {
	e, ok := ev.(events.SectorTimeChange)
	if !ok {
		return
	}
	t.mu.Lock()
	id := t.section.ID
	t.mu.Unlock()
	if e.IsActiveOnly && e.SectorID != id {
		return
	}
	if t.dedup.Duplicate(e) {
		return
	}
	t.Recompute(true)
}

func (t *Tracker) armFrameLocked() {
	t.stopFrameLocked()
	gen := t.frameGen
	t.frame = t.clock.AfterFunc(t.interval, func() { t.tick(gen) })
}

func (t *Tracker) stopFrameLocked() {
	t.frameGen++
	if t.frame != nil {
		t.frame.Stop()
		t.frame = nil
	}
}

func (t *Tracker) tick(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.frameGen || t.state != StatePlayingSync {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.Recompute(false)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || gen != t.frameGen || t.state != StatePlayingSync {
		return
	}
	t.frame = t.clock.AfterFunc(t.interval, func() { t.tick(gen) })
}

// Close stops the frame loop and detaches from the bus.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.state = StateIdle
	t.stopFrameLocked()
	unsubscribe := t.unsubscribe
	t.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	t.logger.Debug().Msg("tracker closed")
}
