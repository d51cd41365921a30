// Package streaming serves catalog files with byte-range support so clients
// can seek inside long recordings.
package streaming

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"editorsync/internal/media"
	"editorsync/internal/storage"
)

var ErrMediaNotFound = errors.New("media not found")

// Resolver looks up catalog items by id.
type Resolver interface {
	Item(id string) (*storage.MediaItem, error)
}

type Handler struct {
	resolver Resolver
}

func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Serve writes the media file for id. Nothing is written when an error is
// returned.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, id string) error {
	item, err := h.resolver.Item(id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrMediaNotFound
	}

	file, err := os.Open(item.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrMediaNotFound
		}
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}
	if stat.IsDir() {
		return ErrMediaNotFound
	}

	w.Header().Set("Content-Type", media.GetContentType(item.Path))
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filepath.Base(item.Path), stat.ModTime(), file)
	return nil
}
