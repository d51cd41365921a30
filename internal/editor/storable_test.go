package editor

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated() State {
	s := Reduce(Initial(), AddNewTracks{Media: []MediaFile{
		video("a1", "cam_0001.mp4", day, 60),
		video("a2", "cam_0002.mp4", day+60, 60),
	}})
	s = Reduce(s, SetMedia{Media: []MediaFile{video("a1", "cam_0001.mp4", day, 60)}})
	s = Reduce(s, SetActiveTrack{TrackID: s.Tracks[0].ID})
	s = Reduce(s, SetActiveVideo{VideoID: "a1"})
	return s
}

func TestProjectExcludesTransientFields(t *testing.T) {
	s := populated()
	s = Reduce(s, SetIsPlaying{Value: true})
	s = Reduce(s, SetIsSeeking{Value: true})
	s = Reduce(s, StartRecordingSchema{TrackID: "x", StartTime: 0})

	stateJSON, _, err := Project(s).Encode()
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(stateJSON, &fields))
	for _, excluded := range []string{
		"videoRefs", "isSeeking", "isChangingCamera", "isPlaying", "isDirty", "isLoading",
		"hasFetched", "isRecordingSchema", "currentRecordingSegmentId", "metadataCache",
		"thumbnailCache", "media", "tracks", "timeRanges", "montageSchema",
	} {
		assert.NotContains(t, fields, excluded)
	}
	assert.JSONEq(t, `["/media/cam_0001.mp4","/media/cam_0002.mp4"]`, string(fields["addedFiles"]))
}

func TestProjectDropsOpenSegment(t *testing.T) {
	s := Reduce(Initial(), StartRecordingSchema{TrackID: "x", StartTime: 0})
	assert.Empty(t, Project(s).Timeline.MontageSchema)
}

func TestDocumentRoundTrip(t *testing.T) {
	s := populated()
	doc := Project(s)
	stateJSON, timelineJSON, err := doc.Encode()
	require.NoError(t, err)

	decoded, err := DecodeDocument(stateJSON, timelineJSON)
	require.NoError(t, err)
	restored := decoded.Restore()

	assert.True(t, SignificantEqual(s, restored))
	assert.True(t, Identical(Project(restored), Project(decoded.Restore())))
	assert.False(t, restored.IsPlaying)
}

func TestSignificantEqualIgnoresPlaybackScalars(t *testing.T) {
	s := populated()
	next := Reduce(s, SetCurrentTime{Time: 99})
	next = Reduce(next, SetVolume{Volume: 0.2})
	next = Reduce(next, SetScale{Scale: 3})
	assert.True(t, SignificantEqual(s, next))
	assert.False(t, Identical(Project(s), Project(next)))
}

func TestSignificantEqualDetectsStructuralChanges(t *testing.T) {
	base := populated()
	changes := map[string]Action{
		"layout":       SetScreenLayout{Layout: Layout2x2},
		"layout mode":  SetLayoutMode{Mode: "vertical"},
		"panel":        SetPanelLayout{Panel: "timeline", Sizes: []float64{40, 60}},
		"added files":  RemoveFromAddedFiles{Paths: []string{"/media/cam_0002.mp4"}},
		"media":        SetMedia{},
		"tracks":       SetTracks{},
		"active video": SetActiveVideo{VideoID: "a2"},
	}
	for name, a := range changes {
		t.Run(name, func(t *testing.T) {
			assert.False(t, SignificantEqual(base, Reduce(base, a)))
		})
	}
}

func TestMontageEqual(t *testing.T) {
	end := 5.0
	other := 6.0
	a := []MontageSegment{{ID: "s", StartTime: 1, EndTime: &end, SourceTrackIDs: []string{"t"}}}
	b := []MontageSegment{{ID: "s", StartTime: 1, EndTime: &end, SourceTrackIDs: []string{"t"}, Settings: map[string]string{"x": "y"}}}
	assert.True(t, MontageEqual(a, b))

	b[0].EndTime = &other
	assert.False(t, MontageEqual(a, b))

	b[0].EndTime = nil
	assert.False(t, MontageEqual(a, b))
}

func TestStoreNotifiesInDispatchOrder(t *testing.T) {
	store := NewStore(Initial())

	var mu sync.Mutex
	var seen []Kind
	store.Observe(func(c Change) {
		mu.Lock()
		seen = append(seen, c.Action.Kind())
		mu.Unlock()
		if c.Action.Kind() == KindSetIsPlaying {
			store.Dispatch(SetCurrentTime{Time: 1})
		}
	})

	final := store.Dispatch(SetIsPlaying{Value: true}, SetVolume{Volume: 0.5})
	assert.Equal(t, []Kind{KindSetIsPlaying, KindSetVolume, KindSetCurrentTime}, seen)
	assert.Equal(t, 0.5, final.Volume)
	assert.Equal(t, 1.0, store.Snapshot().CurrentTime)
}

func TestStoreUnsubscribe(t *testing.T) {
	store := NewStore(Initial())
	calls := 0
	stop := store.Observe(func(Change) { calls++ })
	store.Dispatch(SetScale{Scale: 2})
	stop()
	store.Dispatch(SetScale{Scale: 3})
	assert.Equal(t, 1, calls)
}

func TestSections(t *testing.T) {
	s := Reduce(Initial(), AddNewTracks{Media: []MediaFile{
		video("a1", "cam.mp4", day, 60),
		video("b1", "phone.mp4", day+30, 100),
		video("c1", "cam.mp4", day+86400, 20),
		{ID: "r", Name: "clip.mp4", Path: "/r", StartTime: 0, Duration: 12, IsVideo: true},
	}})

	sections := Sections(s.Tracks)
	require.Len(t, sections, 3)
	assert.Equal(t, "undated", sections[0].ID)
	assert.Equal(t, "2023-11-14", sections[1].ID)
	assert.Equal(t, day, sections[1].Start)
	assert.Equal(t, 130.0, sections[1].Duration)
	assert.Len(t, sections[1].TrackIDs, 2)
	assert.True(t, sections[1].Absolute())
	assert.False(t, sections[0].Absolute())
}
