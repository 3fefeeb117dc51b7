package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/moodlist/internal/adapters/expression"
	"github.com/ewilliams-labs/moodlist/internal/adapters/rest"
	"github.com/ewilliams-labs/moodlist/internal/config"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/core/services"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/worker"
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.Component("server")

	// 1. Driven adapters
	repo, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	// 2. Core services
	svc, resolver := newServices(cfg, repo)
	if cfg.Storage.SeedOnStart && cfg.Storage.Driver != config.DriverCatalog {
		n, err := svc.SeedIfEmpty(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Int("count", n).Msg("seeded empty store")
		}
	}

	var classifier ports.FrameClassifier
	if cfg.Classifier.Enabled {
		classifier = expression.NewClient(cfg.Classifier.BaseURL, cfg.Classifier.Timeout)
	}
	sessions := services.NewSessionManager(classifier, resolver, services.SessionConfig{
		TTL:           cfg.Detection.SessionTTL,
		IdleTickLimit: cfg.Detection.IdleTickLimit,
		ProbeTimeout:  cfg.Detection.ProbeTimeout,
	})

	// 3. Frame workers, only with a server-side classifier
	var frames rest.FrameQueue
	if classifier != nil {
		pool := worker.NewPool(classifier, sessions, worker.Config{
			Workers:         cfg.Detection.Workers,
			QueueSize:       cfg.Detection.QueueSize,
			ClassifyTimeout: cfg.Detection.ClassifyTimeout,
		})
		pool.Start(ctx)
		defer pool.Stop()
		frames = pool
	}

	// 4. Driving adapter
	opts := rest.Options{
		CORSOrigins:     cfg.Server.CORSOrigins,
		FrameRateLimit:  cfg.Server.FrameRateLimit,
		FrameRateWindow: cfg.Server.FrameRateWindow,
	}
	if b, ok := repo.(rest.BreakerState); ok {
		opts.StoreBreaker = b
	}
	handler := rest.NewHandler(svc, sessions, frames, opts)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).
			Bool("server_classifier", classifier != nil).
			Str("version", version).
			Msg("moodlist API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
