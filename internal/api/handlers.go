package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"editorsync/internal/bridge"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/media"
	"editorsync/internal/persist"
	"editorsync/internal/streaming"
	"editorsync/internal/tracker"
)

const Version = "0.1.0"

// LibraryService rescans the media library.
type LibraryService interface {
	Refresh(ctx context.Context) error
	IsScanning() bool
}

// Deps are the components the API drives.
type Deps struct {
	Editor   *editor.Store
	Engine   *persist.Engine
	History  *persist.History
	Library  LibraryService
	Streamer *streaming.Handler
	Bridge   *bridge.Bridge
	Timeline *bridge.Timeline
	Bus      *events.Bus
}

type Handler struct {
	Deps
	// ctx bounds background work started by requests, such as scans.
	ctx    context.Context
	logger zerolog.Logger
}

func NewHandler(ctx context.Context, deps Deps, logger zerolog.Logger) *Handler {
	return &Handler{
		Deps:   deps,
		ctx:    ctx,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handler) stateResponse() StateResponse {
	return StateResponse{
		State:       h.Editor.Snapshot(),
		CanUndo:     h.History.CanUndo(),
		CanRedo:     h.History.CanRedo(),
		Persistence: h.Engine.Status(),
	}
}

// DispatchAction applies one client action and returns the new state.
func (h *Handler) DispatchAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	action, err := editor.DecodeAction(req.Type, req.Payload)
	if err != nil {
		code := "BAD_REQUEST"
		if errors.Is(err, editor.ErrUnknownAction) {
			code = "UNKNOWN_ACTION"
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	h.Editor.Dispatch(action)
	h.logger.Debug().Str("action", string(req.Type)).Msg("action dispatched")
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handler) SaveState(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ForceSave(r.Context(), h.Editor.Snapshot()); err != nil {
		h.logger.Error().Err(err).Msg("forced save failed")
		if errors.Is(err, persist.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Persistence is shut down")
			return
		}
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", "Failed to save state")
		return
	}
	writeJSON(w, http.StatusOK, h.Engine.Status())
}

// History handlers

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.History.Entries(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list history")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get history")
		return
	}
	if entries == nil {
		entries = []persist.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries: entries,
		CanUndo: h.History.CanUndo(),
		CanRedo: h.History.CanRedo(),
	})
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.History.Undo)
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, h.History.Redo)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(context.Context) error) {
	err := move(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.stateResponse())
	case errors.Is(err, persist.ErrNothingToUndo), errors.Is(err, persist.ErrNothingToRedo):
		writeError(w, http.StatusConflict, "HISTORY_EXHAUSTED", err.Error())
	case errors.Is(err, persist.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
	default:
		h.logger.Error().Err(err).Msg("history navigation failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to move in history")
	}
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.History.Clear(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear history")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Media handlers

func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	files := h.Editor.Snapshot().Media
	if files == nil {
		files = []editor.MediaFile{}
	}
	writeJSON(w, http.StatusOK, MediaListResponse{Media: files})
}

func (h *Handler) ScanLibrary(w http.ResponseWriter, r *http.Request) {
	if h.Library == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Library not configured")
		return
	}

	if h.Library.IsScanning() {
		writeJSON(w, http.StatusOK, ScanResponse{
			Status:  "in_progress",
			Message: "Scan already in progress",
		})
		return
	}

	go func() {
		if err := h.Library.Refresh(h.ctx); err != nil && !errors.Is(err, media.ErrScanInProgress) {
			h.logger.Error().Err(err).Msg("scan failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, ScanResponse{
		Status:  "started",
		Message: "Library scan started",
	})
}

func (h *Handler) StreamMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")

	err := h.Streamer.Serve(w, r, mediaID)
	if errors.Is(err, streaming.ErrMediaNotFound) {
		writeError(w, http.StatusNotFound, "MEDIA_NOT_FOUND", "Media not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", mediaID).Msg("failed to stream media")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to stream media")
	}
}

// Timeline handlers

func (h *Handler) GetSections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SectionsResponse{Sections: h.Timeline.Sections()})
}

// Pointer forwards a drag event to the section's tracker.
func (h *Handler) Pointer(w http.ResponseWriter, r *http.Request) {
	sectionID := chi.URLParam(r, "id")
	t, ok := h.Timeline.Tracker(sectionID)
	if !ok {
		writeError(w, http.StatusNotFound, "SECTION_NOT_FOUND", "Section not found")
		return
	}

	var req PointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	rect := tracker.Rect{Left: req.Left, Width: req.Width}
	var (
		seek    tracker.SeekRequest
		applied bool
	)
	switch req.Phase {
	case "down":
		seek, applied = t.PointerDown(req.X, rect)
	case "move":
		seek, applied = t.PointerMove(req.X, rect)
	case "up":
		seek, applied = t.PointerUp(req.X, rect)
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "phase must be down, move or up")
		return
	}

	resp := PointerResponse{Applied: applied}
	if applied {
		resp.Seek = &seek
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time < 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}
	if err := h.Bridge.SeekTime(req.Time); err != nil {
		if errors.Is(err, bridge.ErrSectionNotFound) {
			writeError(w, http.StatusNotFound, "SECTION_NOT_FOUND", "No section contains that time")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to seek")
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handler) ActivateTrack(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "id")

	err := h.Bridge.SwitchTrack(trackID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.stateResponse())
	case errors.Is(err, bridge.ErrTrackNotFound):
		writeError(w, http.StatusNotFound, "TRACK_NOT_FOUND", "Track not found")
	case errors.Is(err, bridge.ErrTrackEmpty):
		writeError(w, http.StatusConflict, "TRACK_EMPTY", "Track has no videos")
	default:
		h.logger.Error().Err(err).Str("track", trackID).Msg("track switch failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to switch track")
	}
}

func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	var req PlaybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "volume must be between 0 and 1")
			return
		}
		h.Bridge.SetVolume(*req.Volume)
	}
	if req.Playing != nil {
		h.Bridge.SetPlaying(*req.Playing)
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
