package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"editorsync/internal/api"
	"editorsync/internal/bridge"
	"editorsync/internal/clock"
	"editorsync/internal/config"
	"editorsync/internal/editor"
	"editorsync/internal/events"
	"editorsync/internal/media"
	"editorsync/internal/persist"
	"editorsync/internal/server"
	"editorsync/internal/storage"
	"editorsync/internal/streaming"
	"editorsync/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", api.Version).
		Msg("starting editorsync server")

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}
	p := cfg.Persistence

	// Restore before anything observes the store so the restore itself is
	// not scheduled as a save.
	engine := persist.NewEngine(store, clk, persist.Intervals{
		CriticalDebounce: p.CriticalDelay,
		Debounce:         p.StructuralDelay,
		TimeSave:         p.TimeSaveInterval,
		Save:             p.MinSaveInterval,
	}, logger)
	initial := editor.Initial()
	if restored := engine.Initialize(ctx); restored != nil {
		initial = *restored
	}
	initial.HasFetched = true
	es := editor.NewStore(initial)

	history := persist.NewHistory(store, es, p.MaxSnapshots, logger)
	if err := history.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to load history")
	}
	stopHistory := history.Observe(es)
	defer stopHistory()
	stopEngine := engine.Observe(es)
	defer stopEngine()

	bus := events.NewBus(logger.With().Str("component", "bus").Logger())

	cache := bridge.NewSectorCache(engine, logger.With().Str("component", "sector_cache").Logger())
	if err := cache.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load sector positions")
	}
	elements := bridge.NewElements(func(videoID string) bridge.MediaElement {
		return bridge.NewRemoteElement(videoID, bus)
	})
	br := bridge.New(es, cache, elements, bus, clk, cfg.Bridge.DedupWindow, logger)
	defer br.Close()

	timeline := bridge.NewTimeline(es, br, bus, clk, tracker.Config{
		Epsilon:       cfg.Tracker.Epsilon,
		FrameInterval: cfg.Tracker.FrameInterval,
		DedupWindow:   cfg.Tracker.DedupWindow,
	}, logger)
	defer timeline.Close()

	library := media.NewLibrary(media.LibraryOptions{
		Path:       cfg.Library.Path,
		BatchSize:  cfg.Library.BatchSize,
		ProbeDelay: cfg.Library.ProbeDelay,
	}, store, es, logger)

	if p.PeriodicInterval > 0 {
		engine.StartPeriodic(ctx, p.PeriodicInterval, es.Snapshot)
	}

	handler := api.NewHandler(ctx, api.Deps{
		Editor:   es,
		Engine:   engine,
		History:  history,
		Library:  library,
		Streamer: streaming.NewHandler(library),
		Bridge:   br,
		Timeline: timeline,
		Bus:      bus,
	}, logger)
	srv := server.New(cfg, logger, handler)

	if cfg.Library.Path != "" && cfg.Library.ScanOnBoot {
		go func() {
			logger.Info().
				Str("path", cfg.Library.Path).
				Msg("starting initial library scan")
			if err := library.Refresh(ctx); err != nil {
				logger.Error().Err(err).Msg("initial scan failed")
			}
		}()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("received shutdown signal")

		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
		cancel()
	}()

	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	// Flush whatever the debounce timer was still holding.
	if err := engine.ForceSave(context.Background(), es.Snapshot()); err != nil {
		logger.Error().Err(err).Msg("final save failed")
	}
	engine.Close()

	logger.Info().Msg("server stopped")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
