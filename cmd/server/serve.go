package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rtsp-overlay/internal/overlay"
	"rtsp-overlay/internal/platform/config"
	"rtsp-overlay/internal/platform/metrics"
	"rtsp-overlay/internal/server"
	"rtsp-overlay/internal/stream"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

// openStore returns the configured overlay store and a cleanup function.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (overlay.Store, func(context.Context), error) {
	if cfg.OverlayStore == config.StoreMemory {
		log.Warn("using in-memory overlay store; overlays are lost on restart")
		return overlay.NewMemoryStore(), func(context.Context) {}, nil
	}

	ms, err := overlay.ConnectMongo(ctx, overlay.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Attempts:   cfg.MongoConnectAttempts,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return ms, func(ctx context.Context) {
		if err := ms.Close(ctx); err != nil {
			log.Error("mongo disconnect", slog.String("error", err.Error()))
		}
	}, nil
}

func runServe(parent context.Context, cc *commandContext) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := cc.cfg, cc.log
	met := metrics.New()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("overlay store: %w", err)
	}
	defer closeStore(context.Background())

	sup := stream.NewFFmpegSupervisor(stream.SupervisorConfig{
		BinaryPath:  cfg.FFmpegPath,
		OutputDir:   cfg.StreamDir,
		WarmupDelay: cfg.WarmupDelay,
		StopTimeout: cfg.StopTimeout,
	}, log)
	watcher := stream.NewSegmentWatcher(cfg.StreamDir, log, met)
	ctrl := stream.NewController(sup, sup.PlaylistPath(), log, met, stream.WithSegmentClock(watcher))
	prober := stream.NewProber(cfg.FFprobePath, cfg.ProbeInternalTimeout, cfg.ProbeTimeout, log, met)

	router := server.NewRouter(server.Deps{
		Log:              log,
		Metrics:          met,
		Stream:           stream.NewHandler(ctrl, prober, cfg.StreamDir, log, met),
		Session:          ctrl,
		Overlays:         overlay.NewHandler(overlay.NewService(store, log, met), log),
		CORSOrigins:      cfg.CORSOrigins,
		ControlRateLimit: cfg.ControlRateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("stream_dir", cfg.StreamDir),
			slog.String("overlay_store", cfg.OverlayStore),
			slog.String("log_level", cfg.LogLevel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ctrl.Watch(gctx, cfg.LivenessInterval)
	})
	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			// Status loses lastSegmentAt but the service keeps working.
			log.Warn("segment watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", slog.String("error", err.Error()))
		}
		if err := ctrl.Shutdown(); err != nil {
			log.Error("stream shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
