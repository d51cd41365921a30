package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/clock"
	"editorsync/internal/editor"
	"editorsync/internal/metrics"
	"editorsync/internal/storage"
)

// Save paths, used as the metrics path label.
const (
	PathDebounced = "debounced"
	PathForced    = "forced"
	PathPeriodic  = "periodic"
)

var ErrClosed = errors.New("persistence engine closed")

// StateStore is the durable key-value slot plus sector positions.
type StateStore interface {
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, values map[string][]byte) error
	SaveSectorPosition(ctx context.Context, sectorID string, displayTime float64) error
	SectorPositions(ctx context.Context) (map[string]float64, error)
}

// Engine is the only writer of persisted editor state. Its mutex is held
// across storage writes.
type Engine struct {
	mu     sync.Mutex
	store  StateStore
	clock  clock.Clock
	logger zerolog.Logger

	sched       DebounceScheduler
	baseline    *editor.State
	baselineDoc *editor.Document
	latest      editor.State
	hasLatest   bool

	periodic    clock.Timer
	periodicGen uint64
	closed      bool
}

func NewEngine(store StateStore, c clock.Clock, intervals Intervals, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		clock:  c,
		logger: logger.With().Str("component", "persist").Logger(),
		sched:  DebounceScheduler{Intervals: intervals},
	}
}

// Initialize loads the persisted state. It returns nil when there is none,
// when storage fails, or when the record does not validate; the editor then
// starts blank.
func (e *Engine) Initialize(ctx context.Context) *editor.State {
	raw, err := e.store.GetState(ctx, storage.KeyLastState)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to load persisted state")
		return nil
	}
	if raw == nil {
		e.logger.Info().Msg("no persisted state")
		return nil
	}
	if err := storage.ValidateState(raw); err != nil {
		e.logger.Warn().Err(err).Msg("discarding persisted state")
		return nil
	}
	timeline, err := e.store.GetState(ctx, storage.KeyTimelineState)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to load persisted timeline")
		return nil
	}
	doc, err := editor.DecodeDocument(raw, timeline)
	if err != nil {
		e.logger.Warn().Err(err).Msg("discarding undecodable state")
		return nil
	}

	state := doc.Restore()
	state.HistorySnapshotIDs = doc.State.HistorySnapshotIDs
	state.CurrentHistoryIndex = doc.State.CurrentHistoryIndex
	state.HasFetched = true

	e.mu.Lock()
	restored := editor.Project(state)
	e.baseline = &state
	e.baselineDoc = &restored
	e.sched.LastSave = e.clock.Now()
	e.mu.Unlock()

	e.logger.Info().
		Int("tracks", len(state.Tracks)).
		Int("media", len(state.Media)).
		Int("segments", len(state.MontageSchema)).
		Msg("restored persisted state")
	return &state
}

// Observe schedules a save for every change applied to store.
func (e *Engine) Observe(store *editor.Store) func() {
	return store.Observe(func(c editor.Change) {
		e.ScheduleSave(c.Next, c.Action.Kind())
	})
}

// ScheduleSave records state as the latest and arms the debounce timer if
// the change warrants a save. It reports whether the timer was armed.
func (e *Engine) ScheduleSave(state editor.State, kind editor.Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.latest = state
	e.hasLatest = true

	now := e.clock.Now()
	d := e.sched.Decide(now, state, e.baseline, kind)
	if !d.Arm {
		return false
	}
	if kind == editor.KindSetCurrentTime {
		e.sched.LastTimeArm = now
	}
	e.sched.Arm(e.clock, d.Delay, e.fire)
	e.logger.Debug().
		Str("action", string(kind)).
		Str("reason", d.Reason).
		Dur("delay", d.Delay).
		Msg("save scheduled")
	return true
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.sched.ShouldFire(gen) || !e.hasLatest {
		return
	}
	_, _ = e.writeLocked(context.Background(), e.latest, PathDebounced)
}

// ForceSave cancels any pending save and writes state now unless it is
// identical to what is persisted.
func (e *Engine) ForceSave(ctx context.Context, state editor.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.sched.Cancel()
	e.latest = state
	e.hasLatest = true
	_, err := e.writeLocked(ctx, state, PathForced)
	return err
}

// writeLocked persists state. It reports whether a write happened. On
// failure the baseline and save markers are left untouched.
func (e *Engine) writeLocked(ctx context.Context, state editor.State, path string) (bool, error) {
	doc := editor.Project(state)
	if e.baselineDoc != nil && editor.Identical(doc, *e.baselineDoc) {
		metrics.Saves.WithLabelValues(path, "skipped").Inc()
		e.logger.Debug().Str("path", path).Msg("state unchanged, skipping save")
		return false, nil
	}

	stateJSON, timelineJSON, err := doc.Encode()
	if err != nil {
		metrics.Saves.WithLabelValues(path, "failed").Inc()
		e.logger.Error().Err(err).Str("path", path).Msg("failed to encode state")
		return false, fmt.Errorf("encode state: %w", err)
	}

	start := e.clock.Now()
	err = e.store.PutState(ctx, map[string][]byte{
		storage.KeyLastState:     stateJSON,
		storage.KeyTimelineState: timelineJSON,
	})
	metrics.SaveDuration.WithLabelValues(path).Observe(e.clock.Now().Sub(start).Seconds())
	if err != nil {
		metrics.Saves.WithLabelValues(path, "failed").Inc()
		e.logger.Error().Err(err).Str("path", path).Msg("failed to save state")
		return false, fmt.Errorf("save state: %w", err)
	}

	saved := state
	e.baseline = &saved
	e.baselineDoc = &doc
	e.sched.LastSave = e.clock.Now()
	metrics.Saves.WithLabelValues(path, "written").Inc()
	e.logger.Debug().Str("path", path).Int("bytes", len(stateJSON)+len(timelineJSON)).Msg("state saved")
	return true, nil
}

// StartPeriodic saves source() every interval until ctx is done or the
// engine is closed. Identical states are skipped.
func (e *Engine) StartPeriodic(ctx context.Context, interval time.Duration, source func() editor.State) {
	if interval <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPeriodicLocked()
	gen := e.periodicGen

	var tick func()
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		state := source()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || gen != e.periodicGen {
			return
		}
		_, _ = e.writeLocked(ctx, state, PathPeriodic)
		e.periodic = e.clock.AfterFunc(interval, tick)
	}
	e.periodic = e.clock.AfterFunc(interval, tick)
}

func (e *Engine) stopPeriodicLocked() {
	e.periodicGen++
	if e.periodic != nil {
		e.periodic.Stop()
		e.periodic = nil
	}
}

// SaveSectorPosition writes a sector position through the engine so the
// store keeps a single writer.
func (e *Engine) SaveSectorPosition(ctx context.Context, sectorID string, displayTime float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.store.SaveSectorPosition(ctx, sectorID, displayTime)
}

func (e *Engine) SectorPositions(ctx context.Context) (map[string]float64, error) {
	return e.store.SectorPositions(ctx)
}

// Status describes the engine's markers.
type Status struct {
	LastSave    time.Time `json:"lastSave"`
	Pending     bool      `json:"pending"`
	HasBaseline bool      `json:"hasBaseline"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		LastSave:    e.sched.LastSave,
		Pending:     e.sched.Pending(),
		HasBaseline: e.baselineDoc != nil,
	}
}

// Close cancels pending timers. Later saves are rejected.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.sched.Cancel()
	e.stopPeriodicLocked()
}
