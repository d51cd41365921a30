package media

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/editor"
	"editorsync/internal/storage"
)

// ToMediaFile converts a catalog row to the editor's media shape. The start
// is the capture time in Unix seconds.
func ToMediaFile(item storage.MediaItem) editor.MediaFile {
	f := editor.MediaFile{
		ID:      item.ID,
		Name:    filepath.Base(item.Path),
		Path:    item.Path,
		Size:    item.Size,
		IsVideo: !item.IsAudio,
		IsAudio: item.IsAudio,
	}
	if item.Duration != nil {
		f.Duration = *item.Duration
	}
	if item.StartTime != nil {
		f.StartTime = *item.StartTime
	} else {
		f.StartTime = float64(item.ModifiedAt.Unix())
	}
	f.EndTime = f.StartTime + f.Duration
	if item.Width != nil {
		f.Width = *item.Width
	}
	if item.Height != nil {
		f.Height = *item.Height
	}
	if item.VideoCodec != nil {
		f.VideoCodec = *item.VideoCodec
	}
	if item.AudioCodec != nil {
		f.AudioCodec = *item.AudioCodec
		f.HasAudio = *item.AudioCodec != ""
	}
	return f
}

// Catalog returns the playable media in start order. Items not yet probed
// or with no readable duration are left out.
func Catalog(store *storage.SQLiteStorage) ([]editor.MediaFile, error) {
	items, err := store.GetAllMedia()
	if err != nil {
		return nil, err
	}
	files := make([]editor.MediaFile, 0, len(items))
	for _, item := range items {
		if !item.Probed() || *item.Duration <= 0 {
			continue
		}
		files = append(files, ToMediaFile(item))
	}
	return files, nil
}

type LibraryOptions struct {
	Path       string
	BatchSize  int
	ProbeDelay time.Duration
}

// Library keeps the editor's media list in step with the files on disk.
type Library struct {
	opts     LibraryOptions
	storage  *storage.SQLiteStorage
	scanner  *Scanner
	enricher *Enricher
	editor   *editor.Store
	logger   zerolog.Logger
}

func NewLibrary(opts LibraryOptions, store *storage.SQLiteStorage, es *editor.Store, logger zerolog.Logger) *Library {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Library{
		opts:     opts,
		storage:  store,
		scanner:  NewScanner(store, logger),
		enricher: NewEnricher(NewMetadataExtractor(logger), store, logger),
		editor:   es,
		logger:   logger.With().Str("component", "library").Logger(),
	}
}

func (l *Library) IsScanning() bool { return l.scanner.IsScanning() }

// Item returns a catalog row by id, or nil when unknown.
func (l *Library) Item(id string) (*storage.MediaItem, error) {
	return l.storage.GetMediaItem(id)
}

// Publish dispatches the current catalog into the editor store.
func (l *Library) Publish() error {
	files, err := Catalog(l.storage)
	if err != nil {
		return err
	}
	l.editor.Dispatch(editor.SetMedia{Media: files})
	l.logger.Debug().Int("media", len(files)).Msg("catalog published")
	return nil
}

// Refresh rescans the library, probes new files and republishes the
// catalog after every probed batch.
func (l *Library) Refresh(ctx context.Context) error {
	found, err := l.scanner.ScanPath(l.opts.Path)
	if err != nil {
		if errors.Is(err, ErrScanInProgress) {
			return err
		}
		l.logger.Error().Err(err).Msg("library scan failed")
		return err
	}
	l.logger.Info().Int("files", found).Msg("library refreshed")

	if err := l.Publish(); err != nil {
		return err
	}

	publish := func() {
		if err := l.Publish(); err != nil {
			l.logger.Error().Err(err).Msg("failed to publish catalog")
		}
	}
	l.enricher.Run(ctx, l.opts.BatchSize, l.opts.ProbeDelay, publish)
	return nil
}
