package bridge

import (
	"sync"

	"editorsync/internal/events"
	"editorsync/internal/timemodel"
)

// MediaElement is a handle on a playing media element. Times are local to
// the video (seconds from its own start).
type MediaElement interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(t float64)
	Volume() float64
	SetVolume(v float64)
	// OnTimeUpdate registers the playback progress callback.
	OnTimeUpdate(fn func(local float64))
}

// RemoteElement drives a media element owned by a connected client. Commands
// are published on the bus for the event relay; the client reports progress
// back through Report.
type RemoteElement struct {
	mu       sync.Mutex
	videoID  string
	bus      *events.Bus
	current  float64
	volume   float64
	onUpdate func(float64)
}

func NewRemoteElement(videoID string, bus *events.Bus) *RemoteElement {
	return &RemoteElement{videoID: videoID, bus: bus, volume: 1}
}

func (e *RemoteElement) Play() {
	e.bus.Publish(events.MediaCommand{VideoID: e.videoID, Op: events.OpPlay})
}

func (e *RemoteElement) Pause() {
	e.bus.Publish(events.MediaCommand{VideoID: e.videoID, Op: events.OpPause})
}

func (e *RemoteElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *RemoteElement) SetCurrentTime(t float64) {
	if !timemodel.Finite(t) || t < 0 {
		return
	}
	e.mu.Lock()
	e.current = t
	e.mu.Unlock()
	e.bus.Publish(events.MediaCommand{VideoID: e.videoID, Op: events.OpSeek, Time: t})
}

func (e *RemoteElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *RemoteElement) SetVolume(v float64) {
	v = timemodel.Clamp(v, 0, 1)
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	e.bus.Publish(events.MediaCommand{VideoID: e.videoID, Op: events.OpSetVolume, Volume: v})
}

func (e *RemoteElement) OnTimeUpdate(fn func(float64)) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

// Report records a timeupdate from the client.
func (e *RemoteElement) Report(local float64) {
	if !timemodel.Finite(local) || local < 0 {
		return
	}
	e.mu.Lock()
	e.current = local
	fn := e.onUpdate
	e.mu.Unlock()
	if fn != nil {
		fn(local)
	}
}

// Elements is the registry of media elements by video id.
type Elements struct {
	mu      sync.Mutex
	byID    map[string]MediaElement
	factory func(videoID string) MediaElement
}

// NewElements returns a registry that creates missing elements with
// factory. A nil factory disables lazy creation.
func NewElements(factory func(videoID string) MediaElement) *Elements {
	return &Elements{byID: make(map[string]MediaElement), factory: factory}
}

// Register attaches el to videoID, replacing any previous element.
func (r *Elements) Register(videoID string, el MediaElement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[videoID] = el
}

// Get returns the element for videoID, creating it when a factory is set.
// created is true when the element was made by this call.
func (r *Elements) Get(videoID string) (el MediaElement, created bool, ok bool) {
	if videoID == "" {
		return nil, false, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.byID[videoID]; ok {
		return el, false, true
	}
	if r.factory == nil {
		return nil, false, false
	}
	el = r.factory(videoID)
	if el == nil {
		return nil, false, false
	}
	r.byID[videoID] = el
	return el, true, true
}
