package storage

import "time"

// Record keys in editor_state.
const (
	KeyLastState     = "lastState"
	KeyTimelineState = "timelineState"
)

// MediaItem is a catalog row. Duration and StartTime stay nil until the
// metadata has been probed.
type MediaItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Path       string    `json:"-"`
	Size       int64     `json:"size"`
	IsAudio    bool      `json:"is_audio"`
	Duration   *float64  `json:"duration,omitempty"`
	StartTime  *float64  `json:"start_time,omitempty"`
	Width      *int      `json:"width,omitempty"`
	Height     *int      `json:"height,omitempty"`
	VideoCodec *string   `json:"video_codec,omitempty"`
	AudioCodec *string   `json:"audio_codec,omitempty"`
	ModifiedAt time.Time `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// Probed reports whether metadata has been extracted.
func (m MediaItem) Probed() bool { return m.Duration != nil }

// Snapshot is one history entry. State holds an encoded editor document.
type Snapshot struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	State     []byte    `json:"-"`
}

// SectorPosition is the last display offset of a sector.
type SectorPosition struct {
	SectorID    string    `json:"sector_id"`
	DisplayTime float64   `json:"display_time"`
	UpdatedAt   time.Time `json:"updated_at"`
}
