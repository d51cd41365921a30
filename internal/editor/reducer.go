package editor

import (
	"github.com/google/uuid"

	"editorsync/internal/timemodel"
)

// Reduce applies a to s and returns the new state. s is not modified.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetTracks:
		s.Tracks = cloneTracks(a.Tracks)
		s.TimeRanges = trackRanges(s.Tracks)
		s.IsDirty = true
	case AddNewTracks:
		s = addNewTracks(s, a.Media)
	case SetActiveTrack:
		if _, ok := s.Track(a.TrackID); ok || a.TrackID == "" {
			s.ActiveTrackID = a.TrackID
		}
	case SetActiveVideo:
		if _, ok := s.Video(a.VideoID); ok || a.VideoID == "" {
			s.ActiveVideoID = a.VideoID
		}
	case SetScreenLayout:
		s.CurrentLayout = a.Layout
	case SetLayoutMode:
		s.LayoutMode = a.Mode
	case SetPanelLayout:
		layouts := make(map[string][]float64, len(s.PanelLayouts)+1)
		for k, v := range s.PanelLayouts {
			layouts[k] = v
		}
		layouts[a.Panel] = append([]float64(nil), a.Sizes...)
		s.PanelLayouts = layouts
	case StartRecordingSchema:
		s = startRecording(s, a)
	case StopRecordingSchema:
		s = stopRecording(s)
	case EndSeeking:
		s.IsSeeking = false
	case SetCurrentTime:
		if timemodel.Finite(a.Time) && a.Time >= 0 {
			s.CurrentTime = a.Time
		}
	case SetIsSeeking:
		s.IsSeeking = a.Value
	case SetIsChangingCamera:
		s.IsChangingCamera = a.Value
	case SetIsPlaying:
		s.IsPlaying = a.Value
	case SetVolume:
		s.Volume = timemodel.Clamp(a.Volume, 0, 1)
	case SetTrackVolume:
		volumes := make(map[string]float64, len(s.TrackVolumes)+1)
		for k, v := range s.TrackVolumes {
			volumes[k] = v
		}
		volumes[a.TrackID] = timemodel.Clamp(a.Volume, 0, 1)
		s.TrackVolumes = volumes
	case SetScale:
		if timemodel.Finite(a.Scale) && a.Scale > 0 {
			s.Scale = a.Scale
		}
	case SetLoadingState:
		s.IsLoading = a.Loading
		if !a.Loading {
			s.HasFetched = true
		}
	case SetHistory:
		s.HistorySnapshotIDs = append([]int64(nil), a.SnapshotIDs...)
		s.CurrentHistoryIndex = a.CurrentIndex
	case SetMedia:
		s.Media = append([]MediaFile(nil), a.Media...)
		s.HasMedia = len(s.Media) > 0
	case AddToAddedFiles:
		s.AddedFiles = addUnique(s.AddedFiles, a.Paths...)
	case RemoveFromAddedFiles:
		s.AddedFiles = removeAll(s.AddedFiles, a.Paths...)
	case SetTimeRanges:
		ranges := make(map[string][]TimeRange, len(a.TimeRanges))
		for k, v := range a.TimeRanges {
			ranges[k] = append([]TimeRange(nil), v...)
		}
		s.TimeRanges = ranges
	case RestoreDocument:
		s = a.Document.apply(s)
	}
	return s
}

func addNewTracks(s State, media []MediaFile) State {
	var fresh []MediaFile
	seen := make(map[string]bool, len(media))
	for _, m := range media {
		if (!m.IsVideo && !m.IsAudio) || seen[m.Path] || contains(s.AddedFiles, m.Path) {
			continue
		}
		seen[m.Path] = true
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return s
	}

	built := BuildTracks(fresh, s.Tracks)
	tracks := cloneTracks(s.Tracks)
	for _, t := range built {
		if i := indexOfTrack(tracks, t.ID); i >= 0 {
			tracks[i] = mergeTrack(tracks[i], t)
			continue
		}
		tracks = append(tracks, t)
	}
	s.Tracks = tracks
	s.TimeRanges = trackRanges(tracks)

	paths := make([]string, 0, len(fresh))
	for _, m := range fresh {
		paths = append(paths, m.Path)
	}
	s.AddedFiles = addUnique(s.AddedFiles, paths...)
	s.IsDirty = true
	return s
}

func startRecording(s State, a StartRecordingSchema) State {
	if s.IsRecordingSchema {
		s = stopRecording(s)
	}
	seg := MontageSegment{
		ID:             uuid.NewString(),
		SourceTrackIDs: []string{a.TrackID},
		StartTime:      a.StartTime,
	}
	s.MontageSchema = append(append([]MontageSegment(nil), s.MontageSchema...), seg)
	s.IsRecordingSchema = true
	s.CurrentRecordingSegmentID = seg.ID
	return s
}

// stopRecording closes the open segment at the current playback time. A
// segment whose start is not before that time is dropped.
func stopRecording(s State) State {
	id := s.CurrentRecordingSegmentID
	s.IsRecordingSchema = false
	s.CurrentRecordingSegmentID = ""
	if id == "" {
		return s
	}

	now := s.CurrentTime
	segments := make([]MontageSegment, 0, len(s.MontageSchema))
	for _, seg := range s.MontageSchema {
		if seg.ID != id {
			segments = append(segments, seg)
			continue
		}
		if seg.StartTime >= now {
			continue
		}
		end := now
		seg.EndTime = &end
		segments = append(segments, seg)
	}
	s.MontageSchema = segments
	return s
}

func trackRanges(tracks []Track) map[string][]TimeRange {
	ranges := make(map[string][]TimeRange, len(tracks))
	for _, t := range tracks {
		ranges[t.ID] = t.TimeRanges()
	}
	return ranges
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		t.Videos = append([]MediaFile(nil), t.Videos...)
		out[i] = t
	}
	return out
}

func indexOfTrack(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func addUnique(list []string, values ...string) []string {
	out := append([]string(nil), list...)
	for _, v := range values {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func removeAll(list []string, values ...string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !contains(values, v) {
			out = append(out, v)
		}
	}
	return out
}
