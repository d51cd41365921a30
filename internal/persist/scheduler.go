// Package persist decides when editor state is written to durable storage
// and keeps the undo/redo history.
package persist

import (
	"time"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
)

// Intervals configures the debounce scheduler.
type Intervals struct {
	// CriticalDebounce is the delay for critical actions.
	CriticalDebounce time.Duration
	// Debounce is the delay for significant structural changes.
	Debounce time.Duration
	// TimeSave rate-limits setCurrentTime saves.
	TimeSave time.Duration
	// Save is the minimum gap between structural saves, except montage
	// edits.
	Save time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		CriticalDebounce: 500 * time.Millisecond,
		Debounce:         2 * time.Second,
		TimeSave:         5 * time.Second,
		Save:             10 * time.Second,
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Arm    bool
	Delay  time.Duration
	Reason string
}

// DebounceScheduler holds the save markers and the single timer slot.
// It is not safe for concurrent use; the Engine guards it.
type DebounceScheduler struct {
	Intervals   Intervals
	LastSave    time.Time
	LastTimeArm time.Time

	timer      clock.Timer
	generation uint64
}

// Decide reports whether a change caused by kind should arm the save timer
// and with which delay. baseline is the last persisted state, nil when
// nothing has been persisted or restored.
func (s *DebounceScheduler) Decide(now time.Time, next editor.State, baseline *editor.State, kind editor.Kind) Decision {
	iv := s.Intervals
	class := editor.Classify(kind)

	if kind == editor.KindSetCurrentTime {
		last := s.LastSave
		if s.LastTimeArm.After(last) {
			last = s.LastTimeArm
		}
		if now.Sub(last) < iv.TimeSave {
			return Decision{Reason: "time rate limit"}
		}
	}

	if baseline == nil {
		delay := iv.Debounce
		if class == editor.ClassCritical {
			delay = iv.CriticalDebounce
		}
		return Decision{Arm: true, Delay: delay, Reason: "no baseline"}
	}

	switch class {
	case editor.ClassCritical:
		return Decision{Arm: true, Delay: iv.CriticalDebounce, Reason: "critical"}
	case editor.ClassTemporary:
		return Decision{Reason: "temporary"}
	}

	if !editor.MontageEqual(next.MontageSchema, baseline.MontageSchema) {
		return Decision{Arm: true, Delay: iv.Debounce, Reason: "montage changed"}
	}
	if editor.SignificantEqual(next, *baseline) {
		return Decision{Reason: "insignificant"}
	}
	if now.Sub(s.LastSave) < iv.Save {
		return Decision{Reason: "save interval"}
	}
	return Decision{Arm: true, Delay: iv.Debounce, Reason: "significant"}
}

// Arm replaces any pending timer with one that calls fire after d. fire
// receives the generation it was armed with.
func (s *DebounceScheduler) Arm(c clock.Clock, d time.Duration, fire func(gen uint64)) {
	s.Cancel()
	gen := s.generation
	s.timer = c.AfterFunc(d, func() { fire(gen) })
}

// Cancel stops the pending timer. A callback already running observes the
// bumped generation and does nothing.
func (s *DebounceScheduler) Cancel() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ShouldFire reports whether a callback armed with gen is still current,
// and clears the slot when it is.
func (s *DebounceScheduler) ShouldFire(gen uint64) bool {
	if gen != s.generation {
		return false
	}
	s.timer = nil
	return true
}

// Pending reports whether a timer is armed.
func (s *DebounceScheduler) Pending() bool { return s.timer != nil }
