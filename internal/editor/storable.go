package editor

import (
	"bytes"
	"encoding/json"
)

// StorableState is the persisted slice of State: everything except the
// transient flags, the recording cursor and the timeline payload, with
// AddedFiles as an ordered list.
type StorableState struct {
	HasMedia            bool                 `json:"hasMedia"`
	IsSaved             bool                 `json:"isSaved"`
	CurrentTime         float64              `json:"currentTime"`
	Scale               float64              `json:"scale"`
	Volume              float64              `json:"volume"`
	TrackVolumes        map[string]float64   `json:"trackVolumes"`
	AddedFiles          []string             `json:"addedFiles"`
	HistorySnapshotIDs  []int64              `json:"historySnapshotIds"`
	CurrentHistoryIndex int                  `json:"currentHistoryIndex"`
	ActiveVideoID       string               `json:"activeVideoId"`
	ActiveTrackID       string               `json:"activeTrackId"`
	CurrentLayout       ScreenLayout         `json:"currentLayout"`
	LayoutMode          string               `json:"layoutMode"`
	PanelLayouts        map[string][]float64 `json:"panelLayouts"`
}

// StorableTimeline is the timeline payload persisted in its own slot.
type StorableTimeline struct {
	Media         []MediaFile            `json:"media"`
	Tracks        []Track                `json:"tracks"`
	TimeRanges    map[string][]TimeRange `json:"timeRanges"`
	MontageSchema []MontageSegment       `json:"montageSchema"`
}

// Document pairs both persisted records. It is a value built fresh for each
// persistence attempt.
type Document struct {
	State    StorableState    `json:"state"`
	Timeline StorableTimeline `json:"timeline"`
}

// Project builds the persisted form of s. An open recording segment is
// dropped since it has no end yet.
func Project(s State) Document {
	segments := make([]MontageSegment, 0, len(s.MontageSchema))
	for _, seg := range s.MontageSchema {
		if seg.Open() {
			continue
		}
		segments = append(segments, seg)
	}

	added := s.AddedFiles
	if added == nil {
		added = []string{}
	}

	return Document{
		State: StorableState{
			HasMedia:            s.HasMedia,
			IsSaved:             s.IsSaved,
			CurrentTime:         s.CurrentTime,
			Scale:               s.Scale,
			Volume:              s.Volume,
			TrackVolumes:        s.TrackVolumes,
			AddedFiles:          append([]string(nil), added...),
			HistorySnapshotIDs:  s.HistorySnapshotIDs,
			CurrentHistoryIndex: s.CurrentHistoryIndex,
			ActiveVideoID:       s.ActiveVideoID,
			ActiveTrackID:       s.ActiveTrackID,
			CurrentLayout:       s.CurrentLayout,
			LayoutMode:          s.LayoutMode,
			PanelLayouts:        s.PanelLayouts,
		},
		Timeline: StorableTimeline{
			Media:         s.Media,
			Tracks:        s.Tracks,
			TimeRanges:    s.TimeRanges,
			MontageSchema: segments,
		},
	}
}

// Restore returns a fresh State carrying the document's fields.
func (d Document) Restore() State {
	return d.apply(Initial())
}

// apply overlays the persisted fields onto s, keeping transient flags.
// History bookkeeping stays with the caller.
func (d Document) apply(s State) State {
	st := d.State
	s.HasMedia = st.HasMedia
	s.IsSaved = st.IsSaved
	s.CurrentTime = st.CurrentTime
	if st.Scale > 0 {
		s.Scale = st.Scale
	}
	s.Volume = st.Volume
	s.TrackVolumes = copyMap(st.TrackVolumes)
	s.AddedFiles = append([]string(nil), st.AddedFiles...)
	s.ActiveVideoID = st.ActiveVideoID
	s.ActiveTrackID = st.ActiveTrackID
	if st.CurrentLayout != "" {
		s.CurrentLayout = st.CurrentLayout
	}
	if st.LayoutMode != "" {
		s.LayoutMode = st.LayoutMode
	}
	s.PanelLayouts = map[string][]float64{}
	for k, v := range st.PanelLayouts {
		s.PanelLayouts[k] = append([]float64(nil), v...)
	}

	tl := d.Timeline
	s.Media = append([]MediaFile(nil), tl.Media...)
	s.Tracks = cloneTracks(tl.Tracks)
	s.TimeRanges = map[string][]TimeRange{}
	for k, v := range tl.TimeRanges {
		s.TimeRanges[k] = append([]TimeRange(nil), v...)
	}
	s.MontageSchema = append([]MontageSegment(nil), tl.MontageSchema...)
	s.IsRecordingSchema = false
	s.CurrentRecordingSegmentID = ""
	return s
}

// Encode marshals the document into its two persisted records.
func (d Document) Encode() (state, timeline []byte, err error) {
	state, err = json.Marshal(d.State)
	if err != nil {
		return nil, nil, err
	}
	timeline, err = json.Marshal(d.Timeline)
	if err != nil {
		return nil, nil, err
	}
	return state, timeline, nil
}

// Identical reports whether two documents serialise to the same bytes.
func Identical(a, b Document) bool {
	as, at, err := a.Encode()
	if err != nil {
		return false
	}
	bs, bt, err := b.Encode()
	if err != nil {
		return false
	}
	return bytes.Equal(as, bs) && bytes.Equal(at, bt)
}

// DecodeDocument rebuilds a document from its two records. A missing
// timeline record yields an empty timeline.
func DecodeDocument(state, timeline []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(state, &d.State); err != nil {
		return Document{}, err
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &d.Timeline); err != nil {
			return Document{}, err
		}
	}
	return d, nil
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
