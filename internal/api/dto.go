package api

import (
	"encoding/json"

	"editorsync/internal/bridge"
	"editorsync/internal/editor"
	"editorsync/internal/persist"
	"editorsync/internal/tracker"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type StateResponse struct {
	State       editor.State   `json:"state"`
	CanUndo     bool           `json:"canUndo"`
	CanRedo     bool           `json:"canRedo"`
	Persistence persist.Status `json:"persistence"`
}

// ActionRequest is a serialised editor action.
type ActionRequest struct {
	Type    editor.Kind     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HistoryResponse struct {
	Entries []persist.Entry `json:"entries"`
	CanUndo bool            `json:"canUndo"`
	CanRedo bool            `json:"canRedo"`
}

type MediaListResponse struct {
	Media []editor.MediaFile `json:"media"`
}

type ScanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SectionsResponse struct {
	Sections []bridge.SectionView `json:"sections"`
}

// PointerRequest is one drag event on a section's scrub track.
type PointerRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

type PointerResponse struct {
	Applied bool                 `json:"applied"`
	Seek    *tracker.SeekRequest `json:"seek,omitempty"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type PlaybackRequest struct {
	Playing *bool    `json:"playing,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
