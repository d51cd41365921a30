package editor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 1_700_000_000.0 // 2023-11-14

func video(id, name string, start, dur float64) MediaFile {
	return MediaFile{ID: id, Name: name, Path: "/media/" + name, StartTime: start, Duration: dur, IsVideo: true}
}

func TestRecordingStopSameTickDiscardsSegment(t *testing.T) {
	s := Initial()
	s = Reduce(s, SetCurrentTime{Time: 42})
	s = Reduce(s, StartRecordingSchema{TrackID: "t1", StartTime: s.CurrentTime})
	require.Len(t, s.MontageSchema, 1)
	assert.True(t, s.IsRecordingSchema)
	assert.True(t, s.MontageSchema[0].Open())

	s = Reduce(s, StopRecordingSchema{})
	assert.Empty(t, s.MontageSchema)
	assert.False(t, s.IsRecordingSchema)
	assert.Empty(t, s.CurrentRecordingSegmentID)
}

func TestRecordingStopClosesSegment(t *testing.T) {
	s := Initial()
	s = Reduce(s, SetCurrentTime{Time: 10})
	s = Reduce(s, StartRecordingSchema{TrackID: "t1", StartTime: 10})
	s = Reduce(s, SetCurrentTime{Time: 25})
	s = Reduce(s, StopRecordingSchema{})

	require.Len(t, s.MontageSchema, 1)
	seg := s.MontageSchema[0]
	require.NotNil(t, seg.EndTime)
	assert.Equal(t, 25.0, *seg.EndTime)
	assert.Equal(t, []string{"t1"}, seg.SourceTrackIDs)
	assert.NotEmpty(t, seg.ID)
}

func TestStartWhileRecordingClosesPrevious(t *testing.T) {
	s := Initial()
	s = Reduce(s, StartRecordingSchema{TrackID: "a", StartTime: 0})
	s = Reduce(s, SetCurrentTime{Time: 5})
	s = Reduce(s, StartRecordingSchema{TrackID: "b", StartTime: 5})

	require.Len(t, s.MontageSchema, 2)
	assert.False(t, s.MontageSchema[0].Open())
	assert.True(t, s.MontageSchema[1].Open())
	assert.Equal(t, s.MontageSchema[1].ID, s.CurrentRecordingSegmentID)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := Initial()
	s = Reduce(s, SetPanelLayout{Panel: "main", Sizes: []float64{30, 70}})
	before := s.PanelLayouts["main"]

	next := Reduce(s, SetPanelLayout{Panel: "main", Sizes: []float64{50, 50}})
	assert.Equal(t, []float64{30, 70}, before)
	assert.Equal(t, []float64{30, 70}, s.PanelLayouts["main"])
	assert.Equal(t, []float64{50, 50}, next.PanelLayouts["main"])
}

func TestAddNewTracksGroupsBySectorAndSeries(t *testing.T) {
	media := []MediaFile{
		video("a1", "cam_0001.mp4", day, 60),
		video("a2", "cam_0002.mp4", day+60, 60),
		video("b1", "phone.mp4", day+10, 30),
		video("c1", "day2/cam_0001.mp4", day+86400, 20),
	}
	s := Reduce(Initial(), AddNewTracks{Media: media})

	require.Len(t, s.Tracks, 3)
	first := s.Tracks[0]
	assert.Equal(t, "Video 1", first.Name)
	assert.Equal(t, "2023-11-14", first.SectorID)
	assert.Len(t, first.Videos, 2)
	assert.Equal(t, day, first.StartTime)
	assert.Equal(t, day+120, first.EndTime)
	assert.Equal(t, 120.0, first.CombinedDuration)
	assert.Equal(t, []TimeRange{{Start: day, End: day + 120}}, s.TimeRanges[first.ID])

	assert.Equal(t, "Video 2", s.Tracks[1].Name)
	assert.Equal(t, "Video 1", s.Tracks[2].Name)
	assert.Equal(t, "2023-11-15", s.Tracks[2].SectorID)
	assert.Len(t, s.AddedFiles, 4)
}

func TestAddNewTracksSkipsAddedAndExtendsSeries(t *testing.T) {
	s := Reduce(Initial(), AddNewTracks{Media: []MediaFile{video("a1", "cam_0001.mp4", day, 60)}})
	s = Reduce(s, AddNewTracks{Media: []MediaFile{
		video("a1", "cam_0001.mp4", day, 60),
		video("a2", "cam_0002.mp4", day+60, 60),
	}})

	require.Len(t, s.Tracks, 1)
	assert.Len(t, s.Tracks[0].Videos, 2)
	assert.Equal(t, []string{"/media/cam_0001.mp4", "/media/cam_0002.mp4"}, s.AddedFiles)
}

func TestAddNewTracksDropsDuplicatePathsInBatch(t *testing.T) {
	s := Reduce(Initial(), AddNewTracks{Media: []MediaFile{
		video("a1", "cam_0001.mp4", day, 60),
		video("a1-copy", "cam_0001.mp4", day+86400, 60),
	}})

	require.Len(t, s.Tracks, 1)
	require.Len(t, s.Tracks[0].Videos, 1)
	assert.Equal(t, "a1", s.Tracks[0].Videos[0].ID)
	assert.Equal(t, []string{"/media/cam_0001.mp4"}, s.AddedFiles)

	placed := 0
	for _, tr := range s.Tracks {
		placed += len(tr.Videos)
	}
	assert.Equal(t, len(s.AddedFiles), placed)
}

func TestSetActiveVideoIgnoresUnknown(t *testing.T) {
	s := Reduce(Initial(), AddNewTracks{Media: []MediaFile{video("a1", "cam.mp4", day, 60)}})
	s = Reduce(s, SetActiveVideo{VideoID: "a1"})
	assert.Equal(t, "a1", s.ActiveVideoID)

	s = Reduce(s, SetActiveVideo{VideoID: "missing"})
	assert.Equal(t, "a1", s.ActiveVideoID)
}

func TestTrackVideoAt(t *testing.T) {
	tr := Track{Videos: []MediaFile{video("a", "a.mp4", 100, 10), video("b", "b.mp4", 120, 10)}}

	v, ok := tr.VideoAt(105)
	require.True(t, ok)
	assert.Equal(t, "a", v.ID)

	_, ok = tr.VideoAt(110)
	assert.False(t, ok, "end is exclusive")

	_, ok = tr.VideoAt(115)
	assert.False(t, ok)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction(KindSetCurrentTime, json.RawMessage(`{"time":12.5}`))
	require.NoError(t, err)
	assert.Equal(t, SetCurrentTime{Time: 12.5}, a)

	a, err = DecodeAction(KindStopRecordingSchema, nil)
	require.NoError(t, err)
	assert.Equal(t, KindStopRecordingSchema, a.Kind())

	_, err = DecodeAction("restoreDocument", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = DecodeAction(KindSetVolume, json.RawMessage(`{"volume":"loud"}`))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		kind Kind
		want Class
	}{
		{KindSetTracks, ClassCritical},
		{KindSetCurrentTime, ClassCritical},
		{KindStopRecordingSchema, ClassCritical},
		{KindSetIsPlaying, ClassTemporary},
		{KindSetVolume, ClassTemporary},
		{KindSetScale, ClassTemporary},
		{KindSetMedia, ClassStructural},
		{Kind("somethingNew"), ClassStructural},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.kind), string(tt.kind))
	}
}
