package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/tracker"
)

const day = "2023-11-14"

var (
	videoA = editor.MediaFile{ID: "a", Name: "cam1_1.mp4", StartTime: 1_700_000_000, Duration: 100, IsVideo: true}
	videoB = editor.MediaFile{ID: "b", Name: "cam2_1.mp4", StartTime: 1_700_000_050, Duration: 100, IsVideo: true}
	videoC = editor.MediaFile{ID: "c", Name: "cam2_2.mp4", StartTime: 1_700_000_300, Duration: 50, IsVideo: true}
)

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeElement struct {
	id      string
	rec     *recorder
	current float64
	volume  float64
	update  func(float64)
}

func (e *fakeElement) Play()                { e.rec.add(e.id + ":play") }
func (e *fakeElement) Pause()               { e.rec.add(e.id + ":pause") }
func (e *fakeElement) CurrentTime() float64 { return e.current }
func (e *fakeElement) SetCurrentTime(t float64) {
	e.current = t
	e.rec.add(fmt.Sprintf("%s:seek:%g", e.id, t))
}
func (e *fakeElement) Volume() float64               { return e.volume }
func (e *fakeElement) SetVolume(v float64)           { e.volume = v }
func (e *fakeElement) OnTimeUpdate(fn func(float64)) { e.update = fn }

type memPositions struct {
	mu    sync.Mutex
	saved map[string]float64
	calls int
}

func (m *memPositions) SaveSectorPosition(_ context.Context, id string, t float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]float64{}
	}
	m.saved[id] = t
	m.calls++
	return nil
}

func (m *memPositions) SectorPositions(context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]float64{}
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

type fixture struct {
	store     *editor.Store
	bridge    *Bridge
	bus       *events.Bus
	clock     *clock.Fake
	rec       *recorder
	positions *memPositions
	elements  map[string]*fakeElement
}

func track(id string, videos ...editor.MediaFile) editor.Track {
	t := editor.Track{ID: id, Name: id, Type: "video", SectorID: day, Videos: videos}
	t.StartTime = videos[0].StartTime
	t.EndTime = videos[len(videos)-1].End()
	return t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := editor.Initial()
	state.Tracks = []editor.Track{track("t1", videoA), track("t2", videoB, videoC)}
	state.ActiveTrackID = "t1"
	state.ActiveVideoID = "a"
	state.CurrentTime = videoA.StartTime

	f := &fixture{
		store:     editor.NewStore(state),
		bus:       events.NewBus(zerolog.Nop()),
		clock:     clock.NewFake(time.Unix(1_700_000_000, 0)),
		rec:       &recorder{},
		positions: &memPositions{},
		elements:  map[string]*fakeElement{},
	}
	elements := NewElements(func(id string) MediaElement {
		el := &fakeElement{id: id, rec: f.rec, volume: 1}
		f.elements[id] = el
		return el
	})
	cache := NewSectorCache(f.positions, zerolog.Nop())
	f.bridge = New(f.store, cache, elements, f.bus, f.clock, 100*time.Millisecond, zerolog.Nop())
	t.Cleanup(f.bridge.Close)
	return f
}

func TestSeekUpdatesCacheThenPlayerThenElement(t *testing.T) {
	f := newFixture(t)

	var order []string
	f.store.Observe(func(c editor.Change) {
		if c.Action.Kind() == editor.KindSetCurrentTime {
			d, _ := f.bridge.Cache().Get(day)
			order = append(order, fmt.Sprintf("player:%g", d))
		}
	})
	var published []events.SectorTimeChange
	f.bus.Subscribe(events.TopicSectorTimeChange, func(ev events.Event) {
		published = append(published, ev.(events.SectorTimeChange))
	})

	f.bridge.Seek(tracker.SeekRequest{SectorID: day, DisplayTime: 40, Target: videoA.StartTime + 40})

	state := f.store.Snapshot()
	assert.True(t, state.IsSeeking)
	assert.Equal(t, videoA.StartTime+40, state.CurrentTime)
	assert.Equal(t, []string{"player:40"}, order, "cache is written before the player")
	assert.Equal(t, []string{"a:seek:40"}, f.rec.entries())
	assert.Zero(t, f.positions.calls, "live seeks are not persisted")
	require.Len(t, published, 1)
	assert.True(t, published[0].IsActiveOnly)

	f.bridge.Seek(tracker.SeekRequest{SectorID: day, DisplayTime: 60, Target: videoA.StartTime + 60, Final: true})
	state = f.store.Snapshot()
	assert.False(t, state.IsSeeking)
	assert.Equal(t, 60.0, f.positions.saved[day])
}

func TestSeekClampsElementTime(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seek(tracker.SeekRequest{SectorID: day, DisplayTime: 500, Target: videoA.StartTime + 500, Final: true})
	assert.Equal(t, []string{"a:seek:100"}, f.rec.entries())
}

func TestSeekIgnoresMalformed(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seek(tracker.SeekRequest{SectorID: "", DisplayTime: 1, Target: 1})
	assert.Empty(t, f.rec.entries())
	assert.False(t, f.store.Snapshot().IsSeeking)
}

func TestDisplayTimePrefersCache(t *testing.T) {
	f := newFixture(t)
	section := editor.Sections(f.store.Snapshot().Tracks)[0]

	f.store.Dispatch(editor.SetCurrentTime{Time: videoA.StartTime + 25})
	assert.Equal(t, 25.0, f.bridge.DisplayTime(section))
	assert.Equal(t, videoA.StartTime+25, f.bridge.SectionTime(section))

	f.bridge.Cache().Set(day, 70)
	assert.Equal(t, 70.0, f.bridge.DisplayTime(section))
	assert.Equal(t, videoA.StartTime+70, f.bridge.SectionTime(section))
}

func TestDisplayTimeRelativeSection(t *testing.T) {
	f := newFixture(t)
	section := editor.Section{ID: "undated", Start: 10, End: 110, Duration: 100}

	f.store.Dispatch(editor.SetCurrentTime{Time: 35})
	assert.Equal(t, 25.0, f.bridge.DisplayTime(section))
	f.store.Dispatch(editor.SetCurrentTime{Time: 5})
	assert.Equal(t, 0.0, f.bridge.DisplayTime(section), "never negative")
}

func TestSwitchTrackWhilePlayingPreservesPosition(t *testing.T) {
	f := newFixture(t)
	f.store.Dispatch(editor.SetCurrentTime{Time: videoA.StartTime + 60}, editor.SetIsPlaying{Value: true})

	var saved []events.SaveAllSectorsTime
	f.bus.Subscribe(events.TopicSaveAllSectorsTime, func(ev events.Event) {
		saved = append(saved, ev.(events.SaveAllSectorsTime))
	})
	var changing []bool
	f.store.Observe(func(c editor.Change) {
		if c.Action.Kind() == editor.KindSetIsChangingCamera {
			changing = append(changing, c.Next.IsChangingCamera)
		}
	})

	require.NoError(t, f.bridge.SwitchTrack("t2"))

	state := f.store.Snapshot()
	assert.Equal(t, "t2", state.ActiveTrackID)
	assert.Equal(t, "b", state.ActiveVideoID)
	assert.Equal(t, videoA.StartTime+60, state.CurrentTime)
	assert.False(t, state.IsChangingCamera)
	assert.Equal(t, []bool{true, false}, changing)

	require.Len(t, saved, 1)
	assert.Equal(t, "a", saved[0].VideoID)
	assert.Equal(t, 60.0, saved[0].DisplayTime)

	assert.Equal(t, []string{"b:seek:10", "a:pause", "b:play"}, f.rec.entries())
	d, ok := f.bridge.Cache().Get(day)
	require.True(t, ok)
	assert.Equal(t, 10.0, d)
}

func TestSwitchTrackWhilePausedDoesNotResume(t *testing.T) {
	f := newFixture(t)
	f.store.Dispatch(editor.SetCurrentTime{Time: videoA.StartTime + 60})

	require.NoError(t, f.bridge.SwitchTrack("t2"))
	assert.Equal(t, []string{"b:seek:10"}, f.rec.entries())
	assert.False(t, f.store.Snapshot().IsPlaying)
}

func TestSwitchTrackFallsBackToFirstVideo(t *testing.T) {
	f := newFixture(t)
	f.store.Dispatch(editor.SetCurrentTime{Time: videoA.StartTime + 200})
	require.NoError(t, f.bridge.SwitchTrack("t2"))

	state := f.store.Snapshot()
	assert.Equal(t, "b", state.ActiveVideoID)
	assert.Equal(t, videoB.StartTime, state.CurrentTime)
	assert.Equal(t, []string{"b:seek:0"}, f.rec.entries())
	d, _ := f.bridge.Cache().Get(day)
	assert.Equal(t, 0.0, d)
}

func TestSwitchTrackUnknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.bridge.SwitchTrack("nope"), ErrTrackNotFound)
	assert.Equal(t, "t1", f.store.Snapshot().ActiveTrackID)
}

func TestSaveAllSectorsTimeIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ev := events.SaveAllSectorsTime{VideoID: "a", DisplayTime: 42}

	f.bus.Publish(ev)
	f.bus.Publish(ev)
	assert.Equal(t, 1, f.positions.calls)

	f.clock.Advance(150 * time.Millisecond)
	f.bus.Publish(ev)
	assert.Equal(t, 2, f.positions.calls)
	assert.Equal(t, 42.0, f.positions.saved[day])
}

func TestTimeUpdateFollowsActiveVideoOnly(t *testing.T) {
	f := newFixture(t)
	_, ok := f.bridge.Element("a")
	require.True(t, ok)
	_, ok = f.bridge.Element("b")
	require.True(t, ok)

	f.elements["a"].update(30)
	assert.Equal(t, videoA.StartTime+30, f.store.Snapshot().CurrentTime)
	d, _ := f.bridge.Cache().Get(day)
	assert.Equal(t, 30.0, d)

	f.elements["b"].update(80)
	assert.Equal(t, videoA.StartTime+30, f.store.Snapshot().CurrentTime, "inactive video is ignored")

	f.store.Dispatch(editor.SetIsSeeking{Value: true})
	f.elements["a"].update(50)
	assert.Equal(t, videoA.StartTime+30, f.store.Snapshot().CurrentTime, "ignored while seeking")
}

func TestEndedAdvancesWithinTrack(t *testing.T) {
	f := newFixture(t)
	f.store.Dispatch(editor.SetActiveTrack{TrackID: "t2"}, editor.SetActiveVideo{VideoID: "b"}, editor.SetIsPlaying{Value: true})

	f.bridge.Ended("b")
	state := f.store.Snapshot()
	assert.Equal(t, "c", state.ActiveVideoID)
	assert.Equal(t, videoC.StartTime, state.CurrentTime)
	assert.Equal(t, []string{"c:seek:0", "c:play"}, f.rec.entries())

	f.bridge.Ended("c")
	assert.False(t, f.store.Snapshot().IsPlaying)
}

func TestTimelineTracksSections(t *testing.T) {
	f := newFixture(t)
	tl := NewTimeline(f.store, f.bridge, f.bus, f.clock, tracker.Config{}, zerolog.Nop())
	t.Cleanup(tl.Close)

	views := tl.Sections()
	require.Len(t, views, 1)
	assert.Equal(t, day, views[0].ID)

	undated := editor.MediaFile{ID: "u", Name: "clip.mp4", StartTime: 0, Duration: 20, IsVideo: true}
	tracks := []editor.Track{
		track("t1", videoA),
		track("t2", videoB, videoC),
		{ID: "t3", SectorID: "undated", Videos: []editor.MediaFile{undated}, EndTime: 20},
	}
	f.store.Dispatch(editor.SetTracks{Tracks: tracks})
	assert.Len(t, tl.Sections(), 2)

	f.store.Dispatch(editor.SetIsPlaying{Value: true})
	tr, ok := tl.Tracker(day)
	require.True(t, ok)
	assert.Equal(t, tracker.StatePlayingSync, tr.State())

	f.store.Dispatch(editor.SetTracks{Tracks: tracks[:2]})
	_, ok = tl.Tracker("undated")
	assert.False(t, ok)
}
