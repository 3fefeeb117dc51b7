package main

import (
	"fmt"

	"github.com/ewilliams-labs/moodlist/internal/adapters/badgerstore"
	"github.com/ewilliams-labs/moodlist/internal/adapters/catalog"
	"github.com/ewilliams-labs/moodlist/internal/adapters/resilient"
	"github.com/ewilliams-labs/moodlist/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodlist/internal/config"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/core/services"
	"github.com/ewilliams-labs/moodlist/internal/logging"
)

// openStore builds the configured playlist repository. The returned closer
// is never nil.
func openStore(cfg *config.Config) (ports.PlaylistRepository, func() error, error) {
	var (
		repo   ports.PlaylistRepository
		closer = func() error { return nil }
	)

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.NewAdapter(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repo, closer = db, db.Close
	case config.DriverBadger:
		st, err := badgerstore.Open(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		repo, closer = st, st.Close
	case config.DriverCatalog:
		repo = catalog.NewClient(catalog.Config{
			BaseURL:      cfg.Catalog.BaseURL,
			ClientID:     cfg.Catalog.ClientID,
			ClientSecret: cfg.Catalog.ClientSecret,
			TokenURL:     cfg.Catalog.TokenURL,
			Scopes:       cfg.Catalog.Scopes,
			MaxRetries:   cfg.Catalog.MaxRetries,
			RetryBackoff: cfg.Catalog.RetryBackoff,
			Timeout:      cfg.Catalog.Timeout,
		}, nil)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	if cfg.Breaker.Enabled {
		repo = resilient.New(repo, resilient.Config{
			Name:         "playlist-store-" + cfg.Storage.Driver,
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
		})
	}

	logging.Info().Str("driver", cfg.Storage.Driver).Bool("breaker", cfg.Breaker.Enabled).Msg("playlist store ready")
	return repo, closer, nil
}

// newServices wires the core services over repo.
func newServices(cfg *config.Config, repo ports.PlaylistRepository) (*services.Orchestrator, *services.Resolver) {
	resolver := services.NewResolver(repo, cfg.Recommend.QueryTimeout)
	return services.NewOrchestrator(repo, resolver), resolver
}
