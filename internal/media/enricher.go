package media

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/storage"
)

// Enricher backfills probed metadata for catalog items.
type Enricher struct {
	metadata     *MetadataExtractor
	storage      *storage.SQLiteStorage
	logger       zerolog.Logger
	processing   map[string]bool
	processingMu sync.Mutex
}

func NewEnricher(metadata *MetadataExtractor, store *storage.SQLiteStorage, logger zerolog.Logger) *Enricher {
	return &Enricher{
		metadata:   metadata,
		storage:    store,
		logger:     logger.With().Str("component", "enricher").Logger(),
		processing: make(map[string]bool),
	}
}

// ProcessMediaItem probes one item and stores its duration, capture time
// and codecs. Items ffprobe cannot read are stored with zero duration so
// they are not retried on every pass.
func (e *Enricher) ProcessMediaItem(ctx context.Context, item *storage.MediaItem) error {
	e.processingMu.Lock()
	if e.processing[item.ID] {
		e.processingMu.Unlock()
		return nil
	}
	e.processing[item.ID] = true
	e.processingMu.Unlock()

	defer func() {
		e.processingMu.Lock()
		delete(e.processing, item.ID)
		e.processingMu.Unlock()
	}()

	meta, err := e.metadata.Extract(ctx, item.Path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn().Err(err).Str("id", item.ID).Str("path", item.Path).Msg("metadata extraction failed")
		meta = &Metadata{}
	}

	start := item.ModifiedAt
	if meta.CreationTime != nil {
		start = *meta.CreationTime
	}
	startTime := float64(start.UnixNano()) / 1e9

	if err := e.storage.UpdateMediaMetadata(
		item.ID,
		meta.Duration,
		startTime,
		meta.Width,
		meta.Height,
		meta.VideoCodec,
		meta.AudioCodec,
	); err != nil {
		e.logger.Error().Err(err).Str("id", item.ID).Msg("failed to update metadata")
		return err
	}

	item.Duration = &meta.Duration
	item.StartTime = &startTime
	e.logger.Debug().
		Str("id", item.ID).
		Float64("duration", meta.Duration).
		Time("start", start).
		Bool("tagged", meta.CreationTime != nil).
		Msg("metadata extracted")
	return nil
}

// Run probes unprocessed items in batches until none are left or ctx is
// done. onBatch is called after every batch that changed the catalog.
func (e *Enricher) Run(ctx context.Context, batchSize int, delay time.Duration, onBatch func()) int {
	if !e.metadata.IsAvailable() {
		e.logger.Warn().Msg("ffprobe not found, metadata backfill disabled")
		return 0
	}
	e.logger.Info().Msg("starting background metadata processing")

	total := 0
	for {
		if ctx.Err() != nil {
			e.logger.Info().Int("processed", total).Msg("background processing cancelled")
			return total
		}

		items, err := e.storage.GetMediaItemsWithoutMetadata(batchSize)
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to get items without metadata")
			return total
		}
		if len(items) == 0 {
			break
		}

		processed := 0
		for _, item := range items {
			itemCopy := item
			if err := e.ProcessMediaItem(ctx, &itemCopy); err != nil {
				if ctx.Err() != nil {
					return total
				}
				e.logger.Error().Err(err).Str("id", item.ID).Msg("failed to process item")
				continue
			}
			processed++
			total++

			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if processed > 0 && onBatch != nil {
			onBatch()
		}
		if processed == 0 {
			break
		}
	}

	e.logger.Info().Int("processed", total).Msg("background processing completed")
	return total
}
