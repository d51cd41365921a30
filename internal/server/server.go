package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"editorsync/internal/api"
	"editorsync/internal/config"
)

type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
	handler    *api.Handler
}

func New(cfg *config.Config, logger zerolog.Logger, handler *api.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Router exposes the route tree for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/state", h.GetState)
		r.Post("/state/save", h.SaveState)
		r.Post("/actions", h.DispatchAction)

		r.Get("/history", h.GetHistory)
		r.Delete("/history", h.ClearHistory)
		r.Post("/history/undo", h.Undo)
		r.Post("/history/redo", h.Redo)

		r.Get("/media", h.ListMedia)
		r.Post("/media/scan", h.ScanLibrary)
		r.Get("/media/{id}/stream", h.StreamMedia)

		r.Get("/sections", h.GetSections)
		r.Post("/sections/{id}/pointer", h.Pointer)
		r.Post("/tracks/{id}/activate", h.ActivateTrack)
		r.Post("/playback/seek", h.Seek)
		r.Post("/playback", h.Playback)

		r.Get("/events", h.Events)
	})
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
