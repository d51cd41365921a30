package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editorsync/internal/editor"
	"editorsync/internal/storage"
)

func newTestHistory(t *testing.T, max int) (*History, *editor.Store, *storage.SQLiteStorage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	es := editor.NewStore(editor.Initial())
	h := NewHistory(db, es, max, zerolog.Nop())
	require.NoError(t, h.Load(context.Background()))
	stop := h.Observe(es)
	t.Cleanup(stop)
	return h, es, db
}

func TestHistoryRecordsSignificantChanges(t *testing.T) {
	h, es, db := newTestHistory(t, 10)
	ctx := context.Background()

	es.Dispatch(editor.AddToAddedFiles{Paths: []string{"/a.mp4"}})
	es.Dispatch(editor.SetCurrentTime{Time: 30})
	es.Dispatch(editor.SetVolume{Volume: 0.2})
	es.Dispatch(editor.SetLayoutMode{Mode: "vertical"})

	snaps, err := db.Snapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 2, "time and volume changes are not history points")

	state := es.Snapshot()
	assert.Equal(t, 1, state.CurrentHistoryIndex)
	assert.Len(t, state.HistorySnapshotIDs, 2)
	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestUndoRedo(t *testing.T) {
	h, es, _ := newTestHistory(t, 10)
	ctx := context.Background()

	es.Dispatch(editor.SetLayoutMode{Mode: "one"})
	es.Dispatch(editor.SetLayoutMode{Mode: "two"})
	es.Dispatch(editor.SetLayoutMode{Mode: "three"})

	require.NoError(t, h.Undo(ctx))
	assert.Equal(t, "two", es.Snapshot().LayoutMode)
	require.NoError(t, h.Undo(ctx))
	assert.Equal(t, "one", es.Snapshot().LayoutMode)
	assert.ErrorIs(t, h.Undo(ctx), ErrNothingToUndo)

	require.NoError(t, h.Redo(ctx))
	assert.Equal(t, "two", es.Snapshot().LayoutMode)
	assert.Equal(t, 1, es.Snapshot().CurrentHistoryIndex)

	require.NoError(t, h.Redo(ctx))
	assert.ErrorIs(t, h.Redo(ctx), ErrNothingToRedo)
}

func TestNewEditAfterUndoTruncatesRedo(t *testing.T) {
	h, es, db := newTestHistory(t, 10)
	ctx := context.Background()

	es.Dispatch(editor.SetLayoutMode{Mode: "one"})
	es.Dispatch(editor.SetLayoutMode{Mode: "two"})
	es.Dispatch(editor.SetLayoutMode{Mode: "three"})
	before, err := db.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, before, 3)

	require.NoError(t, h.Undo(ctx))
	assert.True(t, h.CanRedo())

	es.Dispatch(editor.SetLayoutMode{Mode: "branch"})

	after, err := db.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[1].ID, after[1].ID)
	assert.Greater(t, after[2].ID, before[2].ID, "the discarded branch is gone")

	assert.False(t, h.CanRedo())
	assert.ErrorIs(t, h.Redo(ctx), ErrNothingToRedo)
	require.NoError(t, h.Undo(ctx))
	assert.Equal(t, "two", es.Snapshot().LayoutMode)
}

func TestHistoryIsBounded(t *testing.T) {
	h, es, db := newTestHistory(t, 3)
	ctx := context.Background()

	for _, mode := range []string{"a", "b", "c", "d", "e"} {
		es.Dispatch(editor.SetLayoutMode{Mode: mode})
	}
	snaps, err := db.Snapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	entries, err := h.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[2].Current)

	require.NoError(t, h.Undo(ctx))
	require.NoError(t, h.Undo(ctx))
	assert.Equal(t, "c", es.Snapshot().LayoutMode)
}

func TestHistoryClearAndReload(t *testing.T) {
	h, es, db := newTestHistory(t, 10)
	ctx := context.Background()

	es.Dispatch(editor.SetLayoutMode{Mode: "one"})
	es.Dispatch(editor.SetLayoutMode{Mode: "two"})

	reloaded := NewHistory(db, es, 10, zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.CanUndo())

	require.NoError(t, h.Clear(ctx))
	assert.False(t, h.CanUndo())
	assert.Empty(t, es.Snapshot().HistorySnapshotIDs)
	assert.Equal(t, -1, es.Snapshot().CurrentHistoryIndex)
}

func TestUndoUsesCachedBodies(t *testing.T) {
	h, es, db := newTestHistory(t, 10)
	ctx := context.Background()

	es.Dispatch(editor.SetLayoutMode{Mode: "one"})
	es.Dispatch(editor.SetLayoutMode{Mode: "two"})
	ids := es.Snapshot().HistorySnapshotIDs
	require.Len(t, ids, 2)

	require.NoError(t, db.DeleteSnapshot(ctx, ids[0]))
	require.NoError(t, h.Undo(ctx))
	assert.Equal(t, "one", es.Snapshot().LayoutMode)

	reloaded := NewHistory(db, es, 10, zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.CanUndo(), "a fresh history only sees what storage holds")
}
