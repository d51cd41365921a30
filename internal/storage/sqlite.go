package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS editor_state (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS history_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		state BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sector_positions (
		sector_id TEXT PRIMARY KEY,
		display_time REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL,
		is_audio BOOLEAN DEFAULT FALSE,
		duration REAL,
		start_time REAL,
		width INTEGER,
		height INTEGER,
		video_codec TEXT,
		audio_codec TEXT,
		file_modified_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_media_title ON media_items(title);
	CREATE INDEX IF NOT EXISTS idx_media_start ON media_items(start_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Editor state

// GetState returns the record stored under key, or nil when absent.
func (s *SQLiteStorage) GetState(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM editor_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PutState upserts every record in one transaction.
func (s *SQLiteStorage) PutState(ctx context.Context, values map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO editor_state (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, value, now); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// History snapshots

// AppendSnapshot stores a snapshot and returns its id.
func (s *SQLiteStorage) AppendSnapshot(ctx context.Context, state []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO history_snapshots (created_at, state) VALUES (?, ?)",
		time.Now(), state,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SnapshotByID returns the snapshot, or nil when absent.
func (s *SQLiteStorage) SnapshotByID(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, state FROM history_snapshots WHERE id = ?", id)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.Timestamp, &snap.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LatestSnapshot returns the newest snapshot, or nil when history is empty.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, state FROM history_snapshots ORDER BY id DESC LIMIT 1")

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.Timestamp, &snap.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Snapshots lists snapshot headers oldest first. State is not loaded.
func (s *SQLiteStorage) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at FROM history_snapshots ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Timestamp); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// DeleteSnapshotsAfter removes every snapshot newer than id.
func (s *SQLiteStorage) DeleteSnapshotsAfter(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history_snapshots WHERE id > ?", id)
	return err
}

func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history_snapshots WHERE id = ?", id)
	return err
}

func (s *SQLiteStorage) ClearSnapshots(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history_snapshots")
	return err
}

// Sector positions

// SaveSectorPosition upserts the last display offset of a sector.
func (s *SQLiteStorage) SaveSectorPosition(ctx context.Context, sectorID string, displayTime float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sector_positions (sector_id, display_time, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(sector_id) DO UPDATE SET
			display_time = excluded.display_time,
			updated_at = excluded.updated_at
	`, sectorID, displayTime, time.Now())
	return err
}

// SectorPositions returns every stored sector offset.
func (s *SQLiteStorage) SectorPositions(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT sector_id, display_time FROM sector_positions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make(map[string]float64)
	for rows.Next() {
		var id string
		var t float64
		if err := rows.Scan(&id, &t); err != nil {
			return nil, err
		}
		positions[id] = t
	}
	return positions, rows.Err()
}

// Media items

const mediaColumns = `id, title, path, size, is_audio, duration, start_time, width, height,
		       video_codec, audio_codec, file_modified_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMediaItem(row scanner) (MediaItem, error) {
	var m MediaItem
	var modifiedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.Title, &m.Path, &m.Size, &m.IsAudio,
		&m.Duration, &m.StartTime, &m.Width, &m.Height,
		&m.VideoCodec, &m.AudioCodec,
		&modifiedAt, &m.CreatedAt,
	)
	if err != nil {
		return MediaItem{}, err
	}
	if modifiedAt.Valid {
		m.ModifiedAt = modifiedAt.Time
	}
	return m, nil
}

func (s *SQLiteStorage) queryMedia(query string, args ...any) ([]MediaItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) GetMediaItem(id string) (*MediaItem, error) {
	m, err := scanMediaItem(s.db.QueryRow("SELECT "+mediaColumns+" FROM media_items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStorage) GetMediaItemByPath(path string) (*MediaItem, error) {
	m, err := scanMediaItem(s.db.QueryRow("SELECT "+mediaColumns+" FROM media_items WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAllMedia returns the catalog ordered by capture time, unprobed items
// last.
func (s *SQLiteStorage) GetAllMedia() ([]MediaItem, error) {
	return s.queryMedia("SELECT " + mediaColumns + " FROM media_items ORDER BY start_time IS NULL, start_time, title")
}

func (s *SQLiteStorage) CreateMediaItem(m *MediaItem) error {
	_, err := s.db.Exec(`
		INSERT INTO media_items (
			id, title, path, size, is_audio, duration, start_time, width, height,
			video_codec, audio_codec, file_modified_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			size = excluded.size,
			is_audio = excluded.is_audio,
			file_modified_at = excluded.file_modified_at,
			updated_at = excluded.updated_at
	`,
		m.ID, m.Title, m.Path, m.Size, m.IsAudio,
		m.Duration, m.StartTime, m.Width, m.Height,
		m.VideoCodec, m.AudioCodec,
		m.ModifiedAt, m.CreatedAt, time.Now(),
	)

	return err
}

// UpdateMediaMetadata stores probed metadata for a media item.
func (s *SQLiteStorage) UpdateMediaMetadata(id string, duration, startTime float64, width, height int, videoCodec, audioCodec string) error {
	_, err := s.db.Exec(`
		UPDATE media_items SET
			duration = ?,
			start_time = ?,
			width = ?,
			height = ?,
			video_codec = ?,
			audio_codec = ?,
			updated_at = ?
		WHERE id = ?
	`, duration, startTime, width, height, videoCodec, audioCodec, time.Now(), id)
	return err
}

// GetMediaItemsWithoutMetadata returns up to limit items not yet probed.
func (s *SQLiteStorage) GetMediaItemsWithoutMetadata(limit int) ([]MediaItem, error) {
	return s.queryMedia("SELECT "+mediaColumns+" FROM media_items WHERE duration IS NULL LIMIT ?", limit)
}

// GetAllMediaPaths returns all media file paths for cleanup
func (s *SQLiteStorage) GetAllMediaPaths() (map[string]string, error) {
	rows, err := s.db.Query("SELECT id, path FROM media_items")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		paths[id] = path
	}
	return paths, rows.Err()
}

// DeleteMediaItem removes a media item by ID
func (s *SQLiteStorage) DeleteMediaItem(id string) error {
	_, err := s.db.Exec("DELETE FROM media_items WHERE id = ?", id)
	return err
}
