// Package resilient wraps a playlist repository with a circuit breaker so a
// failing store is cut off quickly instead of stalling every resolution.
package resilient

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/metrics"
)

var _ ports.PlaylistRepository = (*Store)(nil)

// Config tunes the breaker. The circuit opens once at least MinRequests were
// seen in the current Interval and FailureRatio of them failed.
type Config struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultConfig() Config {
	return Config{
		Name:         "playlist-store",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Store guards the read path of a repository. Writes pass straight through.
type Store struct {
	next ports.PlaylistRepository
	cb   *gobreaker.CircuitBreaker[[]domain.Playlist]
	name string
}

func New(next ports.PlaylistRepository, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = def.FailureRatio
	}

	log := logging.Component("store")
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]domain.Playlist](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: isSuccessful,
	})

	return &Store{next: next, cb: cb, name: cfg.Name}
}

// isSuccessful decides what counts against the store's health. Missing
// playlists and callers giving up are not store failures; timeouts are.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrReadOnlyStore) ||
		errors.Is(err, context.Canceled)
}

func (s *Store) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	return s.execute(func() ([]domain.Playlist, error) {
		return s.next.Query(ctx, q)
	})
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	out, err := s.execute(func() ([]domain.Playlist, error) {
		p, err := s.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return []domain.Playlist{p}, nil
	})
	if err != nil {
		return domain.Playlist{}, err
	}
	return out[0], nil
}

func (s *Store) Save(ctx context.Context, p domain.Playlist) error {
	return s.next.Save(ctx, p)
}

func (s *Store) ReplaceAll(ctx context.Context, playlists []domain.Playlist) error {
	return s.next.ReplaceAll(ctx, playlists)
}

// State reports the breaker state; /health surfaces it.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func (s *Store) execute(fn func() ([]domain.Playlist, error)) ([]domain.Playlist, error) {
	out, err := s.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "rejected").Inc()
	case err != nil && !isSuccessful(err):
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "failure").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(s.name, "success").Inc()
	}
	return out, err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
