package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"editorsync/internal/storage"
)

var ErrScanInProgress = errors.New("scan already in progress")

type Scanner struct {
	storage  *storage.SQLiteStorage
	logger   zerolog.Logger
	scanning bool
	mu       sync.Mutex
}

func NewScanner(store *storage.SQLiteStorage, logger zerolog.Logger) *Scanner {
	return &Scanner{
		storage: store,
		logger:  logger.With().Str("component", "scanner").Logger(),
	}
}

func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// ScanPath walks the library and upserts every supported media file. It
// returns the number of files found.
func (s *Scanner) ScanPath(libraryPath string) (int, error) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return 0, ErrScanInProgress
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	if libraryPath == "" {
		s.logger.Warn().Msg("no library path configured")
		return 0, nil
	}

	info, err := os.Stat(libraryPath)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, nil
	}

	libraryPath = filepath.Clean(libraryPath)
	s.logger.Info().Str("path", libraryPath).Msg("scanning library")

	if err := s.CleanupDeletedFiles(); err != nil {
		s.logger.Warn().Err(err).Msg("cleanup failed, continuing with scan")
	}

	found := 0
	err = filepath.WalkDir(libraryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to read entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != libraryPath && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !IsSupportedMedia(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to get file info")
			return nil
		}

		item := &storage.MediaItem{
			ID:         generateID(path),
			Title:      strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:       path,
			Size:       info.Size(),
			IsAudio:    IsSupportedAudio(d.Name()),
			ModifiedAt: info.ModTime(),
			CreatedAt:  time.Now(),
		}
		if err := s.storage.CreateMediaItem(item); err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to create media item")
			return nil
		}

		found++
		s.logger.Debug().Str("title", item.Title).Int64("size", item.Size).Msg("added media item")
		return nil
	})
	if err != nil {
		return found, err
	}

	s.logger.Info().Int("files", found).Msg("library scan completed")
	return found, nil
}

func generateID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}

// CleanupDeletedFiles removes database entries for files that no longer exist
func (s *Scanner) CleanupDeletedFiles() error {
	mediaPaths, err := s.storage.GetAllMediaPaths()
	if err != nil {
		return err
	}

	deleted := 0
	for id, path := range mediaPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := s.storage.DeleteMediaItem(id); err != nil {
				s.logger.Error().Err(err).Str("path", path).Msg("failed to delete media item")
			} else {
				deleted++
				s.logger.Debug().Str("path", path).Msg("deleted missing media item")
			}
		}
	}

	if deleted > 0 {
		s.logger.Info().Int("media", deleted).Msg("cleanup completed")
	}

	return nil
}
