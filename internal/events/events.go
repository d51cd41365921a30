// Package events is the in-process publish/subscribe bus that carries
// authoritative time between timeline sections, the synchronization bridge
// and connected clients.
package events

import (
	"fmt"
	"math"
)

// Topic names an event stream.
type Topic string

const (
	TopicSectorTimeChange   Topic = "sector-time-change"
	TopicSaveAllSectorsTime Topic = "save-all-sectors-time"
	TopicMediaCommand       Topic = "media-command"
	TopicScrubPosition      Topic = "scrub-position"
)

// Event is a typed bus payload.
type Event interface {
	Topic() Topic
	// Key identifies the event for deduplication.
	Key() string
	// Valid reports whether required fields are present and finite.
	Valid() bool
}

// SectorTimeChange announces a sector's new display offset. When
// IsActiveOnly is false every section adopts the time.
type SectorTimeChange struct {
	SectorID     string  `json:"sectorId"`
	Time         float64 `json:"time"`
	IsActiveOnly bool    `json:"isActiveOnly"`
}

func (SectorTimeChange) Topic() Topic { return TopicSectorTimeChange }

func (e SectorTimeChange) Key() string {
	return fmt.Sprintf("%s|%.3f|%t", e.SectorID, e.Time, e.IsActiveOnly)
}

func (e SectorTimeChange) Valid() bool {
	return e.SectorID != "" && finite(e.Time) && e.Time >= 0
}

// SaveAllSectorsTime asks listeners to keep the outgoing video's position
// before a track switch.
type SaveAllSectorsTime struct {
	VideoID     string  `json:"videoId"`
	DisplayTime float64 `json:"displayTime"`
}

func (SaveAllSectorsTime) Topic() Topic { return TopicSaveAllSectorsTime }

func (e SaveAllSectorsTime) Key() string {
	return fmt.Sprintf("%s|%.3f", e.VideoID, e.DisplayTime)
}

func (e SaveAllSectorsTime) Valid() bool {
	return e.VideoID != "" && finite(e.DisplayTime) && e.DisplayTime >= 0
}

// MediaOp is a media element command.
type MediaOp string

const (
	OpPlay      MediaOp = "play"
	OpPause     MediaOp = "pause"
	OpSeek      MediaOp = "seek"
	OpSetVolume MediaOp = "volume"
)

// MediaCommand is relayed to the client that owns the media element.
type MediaCommand struct {
	VideoID string  `json:"videoId"`
	Op      MediaOp `json:"op"`
	Time    float64 `json:"time,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
}

func (MediaCommand) Topic() Topic { return TopicMediaCommand }

func (e MediaCommand) Key() string {
	return fmt.Sprintf("%s|%s|%.3f|%.3f", e.VideoID, e.Op, e.Time, e.Volume)
}

func (e MediaCommand) Valid() bool {
	if e.VideoID == "" {
		return false
	}
	switch e.Op {
	case OpPlay, OpPause:
		return true
	case OpSeek:
		return finite(e.Time) && e.Time >= 0
	case OpSetVolume:
		return finite(e.Volume)
	default:
		return false
	}
}

// ScrubPosition reports a section's scrub bar position in percent.
type ScrubPosition struct {
	SectorID string  `json:"sectorId"`
	Percent  float64 `json:"percent"`
}

func (ScrubPosition) Topic() Topic { return TopicScrubPosition }

func (e ScrubPosition) Key() string {
	return fmt.Sprintf("%s|%.2f", e.SectorID, e.Percent)
}

func (e ScrubPosition) Valid() bool {
	return e.SectorID != "" && finite(e.Percent) && e.Percent >= 0 && e.Percent <= 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
