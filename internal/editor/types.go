// Package editor holds the editor state, the action sum type that mutates
// it, and the projections used for persistence.
package editor

import (
	"editorsync/internal/timemodel"
)

// MediaFile is a catalog entry. StartTime is either a relative offset or a
// Unix timestamp taken from the capture time.
type MediaFile struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime,omitempty"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size,omitempty"`
	IsVideo    bool    `json:"isVideo"`
	IsAudio    bool    `json:"isAudio"`
	HasAudio   bool    `json:"hasAudio,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// End returns StartTime+Duration.
func (m MediaFile) End() float64 {
	return m.StartTime + m.Duration
}

// Contains reports whether t falls in [start, start+duration).
func (m MediaFile) Contains(t float64) bool {
	return t >= m.StartTime && t < m.End()
}

// SectorID returns the sector the file belongs to.
func (m MediaFile) SectorID() string {
	return timemodel.SectorID(timemodel.Classify(m.StartTime))
}

// Track is an ordered run of videos shown as one timeline row.
type Track struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Type             string      `json:"type"`
	Index            int         `json:"index"`
	SectorID         string      `json:"sectorId"`
	Videos           []MediaFile `json:"videos"`
	StartTime        float64     `json:"startTime"`
	EndTime          float64     `json:"endTime"`
	CombinedDuration float64     `json:"combinedDuration"`
	Volume           float64     `json:"volume"`
}

// VideoAt returns the video whose [start, start+duration) contains t.
func (t Track) VideoAt(at float64) (MediaFile, bool) {
	for _, v := range t.Videos {
		if v.Contains(at) {
			return v, true
		}
	}
	return MediaFile{}, false
}

// FirstVideo returns the earliest video on the track.
func (t Track) FirstVideo() (MediaFile, bool) {
	if len(t.Videos) == 0 {
		return MediaFile{}, false
	}
	return t.Videos[0], true
}

// TimeRange is a span in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MontageSegment is one recorded span of the edit decision list. A nil
// EndTime marks the segment still being recorded.
type MontageSegment struct {
	ID             string            `json:"id"`
	SourceTrackIDs []string          `json:"sourceTrackIds"`
	StartTime      float64           `json:"startTime"`
	EndTime        *float64          `json:"endTime"`
	Settings       map[string]string `json:"settings,omitempty"`
}

// Open reports whether the segment is still recording.
func (s MontageSegment) Open() bool {
	return s.EndTime == nil
}

// ScreenLayout names the preview grid arrangement.
type ScreenLayout string

const (
	Layout1x1 ScreenLayout = "1x1"
	Layout2x1 ScreenLayout = "2x1"
	Layout1x2 ScreenLayout = "1x2"
	Layout2x2 ScreenLayout = "2x2"
)

// State is the full in-memory editor state. Treat values returned by the
// Store as immutable; the reducer copies before it writes.
type State struct {
	IsPlaying        bool `json:"isPlaying"`
	IsLoading        bool `json:"isLoading"`
	IsSeeking        bool `json:"isSeeking"`
	IsChangingCamera bool `json:"isChangingCamera"`
	IsDirty          bool `json:"isDirty"`
	HasFetched       bool `json:"hasFetched"`
	HasMedia         bool `json:"hasMedia"`
	IsSaved          bool `json:"isSaved"`

	CurrentTime  float64            `json:"currentTime"`
	Scale        float64            `json:"scale"`
	Volume       float64            `json:"volume"`
	TrackVolumes map[string]float64 `json:"trackVolumes"`

	Media      []MediaFile            `json:"media"`
	AddedFiles []string               `json:"addedFiles"`
	Tracks     []Track                `json:"tracks"`
	TimeRanges map[string][]TimeRange `json:"timeRanges"`

	MontageSchema             []MontageSegment `json:"montageSchema"`
	IsRecordingSchema         bool             `json:"isRecordingSchema"`
	CurrentRecordingSegmentID string           `json:"currentRecordingSegmentId"`

	HistorySnapshotIDs  []int64 `json:"historySnapshotIds"`
	CurrentHistoryIndex int     `json:"currentHistoryIndex"`

	ActiveVideoID string               `json:"activeVideoId"`
	ActiveTrackID string               `json:"activeTrackId"`
	CurrentLayout ScreenLayout         `json:"currentLayout"`
	LayoutMode    string               `json:"layoutMode"`
	PanelLayouts  map[string][]float64 `json:"panelLayouts"`
}

// Initial returns the blank editor state.
func Initial() State {
	return State{
		Scale:               1,
		Volume:              1,
		TrackVolumes:        map[string]float64{},
		TimeRanges:          map[string][]TimeRange{},
		CurrentHistoryIndex: -1,
		CurrentLayout:       Layout1x1,
		LayoutMode:          "default",
		PanelLayouts:        map[string][]float64{},
	}
}

// Track returns the track with id.
func (s State) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Video looks a video up across all tracks, falling back to the catalog.
func (s State) Video(id string) (MediaFile, bool) {
	if id == "" {
		return MediaFile{}, false
	}
	for _, t := range s.Tracks {
		for _, v := range t.Videos {
			if v.ID == id {
				return v, true
			}
		}
	}
	for _, m := range s.Media {
		if m.ID == id {
			return m, true
		}
	}
	return MediaFile{}, false
}

// ActiveVideo returns the active video, if any.
func (s State) ActiveVideo() (MediaFile, bool) {
	return s.Video(s.ActiveVideoID)
}

// TrackOfVideo returns the track holding the video id.
func (s State) TrackOfVideo(id string) (Track, bool) {
	for _, t := range s.Tracks {
		for _, v := range t.Videos {
			if v.ID == id {
				return t, true
			}
		}
	}
	return Track{}, false
}
