package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"editorsync/internal/cache"
	"editorsync/internal/editor"
	"editorsync/internal/metrics"
	"editorsync/internal/storage"
)

var (
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// DefaultMaxSnapshots bounds the history when no limit is configured.
const DefaultMaxSnapshots = 50

// bodyCacheBytes caps the memory held by cached snapshot bodies.
const bodyCacheBytes = 32 << 20

// HistoryStore is the append-only snapshot log.
type HistoryStore interface {
	AppendSnapshot(ctx context.Context, state []byte) (int64, error)
	LatestSnapshot(ctx context.Context) (*storage.Snapshot, error)
	Snapshots(ctx context.Context) ([]storage.Snapshot, error)
	SnapshotByID(ctx context.Context, id int64) (*storage.Snapshot, error)
	DeleteSnapshotsAfter(ctx context.Context, id int64) error
	DeleteSnapshot(ctx context.Context, id int64) error
	ClearSnapshots(ctx context.Context) error
}

// Entry is a history list item.
type Entry struct {
	storage.Snapshot
	Current bool `json:"current"`
}

// History is the undo/redo ring. Snapshot ids live in memory in log order
// with index pointing at the snapshot matching the current state.
type History struct {
	mu     sync.Mutex
	store  HistoryStore
	editor *editor.Store
	logger zerolog.Logger
	max    int

	ids   []int64
	index int
	last  []byte
	// bodies caches snapshot bodies so undo and redo skip the database.
	bodies *cache.BytesCache[int64]
}

func NewHistory(store HistoryStore, es *editor.Store, maxSnapshots int, logger zerolog.Logger) *History {
	if maxSnapshots <= 0 {
		maxSnapshots = DefaultMaxSnapshots
	}
	// Only fails for a non-positive size.
	bodies, _ := cache.NewBytesCache[int64](maxSnapshots, bodyCacheBytes)
	return &History{
		store:  store,
		editor: es,
		logger: logger.With().Str("component", "history").Logger(),
		max:    maxSnapshots,
		index:  -1,
		bodies: bodies,
	}
}

// Load reads the snapshot ids from storage. The index is taken from the
// restored state when it is in range, otherwise it points at the tail.
func (h *History) Load(ctx context.Context) error {
	snaps, err := h.store.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	h.mu.Lock()
	h.ids = h.ids[:0]
	for _, s := range snaps {
		h.ids = append(h.ids, s.ID)
	}
	h.index = len(h.ids) - 1
	if idx := h.editor.Snapshot().CurrentHistoryIndex; idx >= 0 && idx < len(h.ids) {
		h.index = idx
	}
	h.last = nil
	action := h.publishLocked()
	h.mu.Unlock()

	h.editor.Dispatch(action)
	return nil
}

// Observe records a snapshot after every significant change.
func (h *History) Observe(es *editor.Store) func() {
	return es.Observe(func(c editor.Change) {
		if !h.shouldRecord(c) {
			return
		}
		if err := h.Record(context.Background(), c.Next); err != nil {
			h.logger.Error().Err(err).Str("action", string(c.Action.Kind())).Msg("failed to record history")
		}
	})
}

func (h *History) shouldRecord(c editor.Change) bool {
	switch c.Action.Kind() {
	case editor.KindRestoreDocument, editor.KindSetCurrentTime, editor.KindEndSeeking:
		return false
	}
	if editor.Classify(c.Action.Kind()) == editor.ClassTemporary {
		return false
	}
	return !editor.SignificantEqual(c.Prev, c.Next)
}

// Record appends a snapshot of state. When the index is before the tail
// the redo branch is deleted first.
func (h *History) Record(ctx context.Context, state editor.State) error {
	body, err := snapshotBody(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	h.mu.Lock()
	if h.last != nil && bytes.Equal(h.last, body) {
		h.mu.Unlock()
		return nil
	}

	if h.index >= 0 && h.index < len(h.ids)-1 {
		if err := h.store.DeleteSnapshotsAfter(ctx, h.ids[h.index]); err != nil {
			h.mu.Unlock()
			return fmt.Errorf("truncate history: %w", err)
		}
		for _, dropped := range h.ids[h.index+1:] {
			h.bodies.Delete(dropped)
		}
		h.ids = h.ids[:h.index+1]
	}

	id, err := h.store.AppendSnapshot(ctx, body)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("append snapshot: %w", err)
	}
	h.ids = append(h.ids, id)
	h.bodies.Set(id, body)

	for len(h.ids) > h.max {
		if err := h.store.DeleteSnapshot(ctx, h.ids[0]); err != nil {
			h.logger.Warn().Err(err).Int64("id", h.ids[0]).Msg("failed to drop oldest snapshot")
			break
		}
		h.bodies.Delete(h.ids[0])
		h.ids = h.ids[1:]
	}
	h.index = len(h.ids) - 1
	h.last = body
	action := h.publishLocked()
	h.mu.Unlock()

	h.editor.Dispatch(action)
	return nil
}

// Undo restores the previous snapshot.
func (h *History) Undo(ctx context.Context) error {
	h.mu.Lock()
	if h.index <= 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	target := h.index - 1
	h.mu.Unlock()
	return h.moveTo(ctx, target)
}

// Redo restores the next snapshot.
func (h *History) Redo(ctx context.Context) error {
	h.mu.Lock()
	if h.index >= len(h.ids)-1 {
		h.mu.Unlock()
		return ErrNothingToRedo
	}
	target := h.index + 1
	h.mu.Unlock()
	return h.moveTo(ctx, target)
}

func (h *History) moveTo(ctx context.Context, target int) error {
	h.mu.Lock()
	if target < 0 || target >= len(h.ids) {
		h.mu.Unlock()
		return ErrSnapshotNotFound
	}
	id := h.ids[target]
	h.mu.Unlock()

	body, err := h.body(ctx, id)
	if err != nil {
		return err
	}
	var doc editor.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode snapshot %d: %w", id, err)
	}

	h.mu.Lock()
	h.index = target
	h.last = body
	action := h.publishLocked()
	h.mu.Unlock()

	h.editor.Dispatch(editor.RestoreDocument{Document: doc}, action)

	h.logger.Info().Int64("snapshot", id).Int("index", target).Msg("restored history snapshot")
	return nil
}

func (h *History) body(ctx context.Context, id int64) ([]byte, error) {
	if body, ok := h.bodies.Get(id); ok {
		return body, nil
	}
	snap, err := h.store.SnapshotByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", id, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	h.bodies.Set(id, snap.State)
	return snap.State, nil
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index >= 0 && h.index < len(h.ids)-1
}

// Entries lists the snapshots in log order.
func (h *History) Entries(ctx context.Context) ([]Entry, error) {
	snaps, err := h.store.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	var current int64 = -1
	if h.index >= 0 && h.index < len(h.ids) {
		current = h.ids[h.index]
	}
	h.mu.Unlock()

	out := make([]Entry, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, Entry{Snapshot: s, Current: s.ID == current})
	}
	return out, nil
}

// Clear deletes every snapshot.
func (h *History) Clear(ctx context.Context) error {
	if err := h.store.ClearSnapshots(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	h.mu.Lock()
	h.ids = h.ids[:0]
	h.index = -1
	h.last = nil
	h.bodies.Clear()
	action := h.publishLocked()
	h.mu.Unlock()

	h.editor.Dispatch(action)
	return nil
}

// snapshotBody encodes the document of state without the history
// bookkeeping, which History owns.
func snapshotBody(state editor.State) ([]byte, error) {
	doc := editor.Project(state)
	doc.State.HistorySnapshotIDs = nil
	doc.State.CurrentHistoryIndex = -1
	return json.Marshal(doc)
}

func (h *History) publishLocked() editor.SetHistory {
	metrics.HistorySnapshots.Set(float64(len(h.ids)))
	return editor.SetHistory{
		SnapshotIDs:  append([]int64(nil), h.ids...),
		CurrentIndex: h.index,
	}
}
