package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/seed"
)

// Orchestrator coordinates playlist management and recommendations on top of
// one playlist repository.
type Orchestrator struct {
	repo     ports.PlaylistRepository
	resolver *Resolver
	catalog  func() ([]domain.Playlist, error)
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator. The resolver may query a
// different store than repo, for example a circuit-broken wrapper of it.
func NewOrchestrator(repo ports.PlaylistRepository, resolver *Resolver) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		resolver: resolver,
		catalog:  seed.Playlists,
		now:      time.Now,
	}
}

// CreatePlaylist validates and stores a new playlist with the given songs.
func (o *Orchestrator) CreatePlaylist(ctx context.Context, name, language, emotion string, songs []domain.Song) (domain.Playlist, error) {
	pl, err := domain.NewPlaylist(uuid.NewString(), name, language, emotion)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("service: invalid playlist: %w", err)
	}
	for _, s := range songs {
		if err := pl.AddSong(s); err != nil {
			return domain.Playlist{}, fmt.Errorf("service: domain rule violation: %w", err)
		}
	}
	pl.CreatedAt = o.now().UTC()

	if err := o.repo.Save(ctx, *pl); err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to save playlist: %w", err)
	}
	return *pl, nil
}

// AddSongToPlaylist appends a song to a stored playlist and returns the
// updated playlist.
func (o *Orchestrator) AddSongToPlaylist(ctx context.Context, playlistID string, song domain.Song) (domain.Playlist, error) {
	// 1. Load playlist from the repository
	plVal, err := o.repo.GetByID(ctx, playlistID)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to load playlist: %w", err)
	}

	// 2. Mutate the playlist (pure domain logic)
	pl := &plVal
	if err := pl.AddSong(song); err != nil {
		return domain.Playlist{}, fmt.Errorf("service: domain rule violation: %w", err)
	}

	// 3. Persist
	if err := o.repo.Save(ctx, *pl); err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to save playlist: %w", err)
	}
	return *pl, nil
}

func (o *Orchestrator) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	pl, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("service: failed to load playlist: %w", err)
	}
	return pl, nil
}

// QueryPlaylists lists stored playlists. An empty emotion or language set
// leaves that filter off. Unlike Recommend it never falls back.
func (o *Orchestrator) QueryPlaylists(ctx context.Context, emotion string, languages []string) ([]domain.Playlist, error) {
	q := ports.PlaylistQuery{Emotion: domain.NormalizeEmotion(emotion)}
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			q.Languages = append(q.Languages, l)
		}
	}
	pls, err := o.repo.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to query playlists: %w", err)
	}
	return pls, nil
}

// SeedPlaylists replaces the stored catalog with the bundled sample
// playlists and returns how many were written.
func (o *Orchestrator) SeedPlaylists(ctx context.Context) (int, error) {
	pls, err := o.catalog()
	if err != nil {
		return 0, fmt.Errorf("service: failed to load seed catalog: %w", err)
	}
	if err := o.repo.ReplaceAll(ctx, pls); err != nil {
		return 0, fmt.Errorf("service: failed to seed playlists: %w", err)
	}
	return len(pls), nil
}

// SeedIfEmpty seeds only a store that holds no playlists yet. It returns
// zero when the store was left alone.
func (o *Orchestrator) SeedIfEmpty(ctx context.Context) (int, error) {
	existing, err := o.repo.Query(ctx, ports.PlaylistQuery{})
	if err != nil {
		return 0, fmt.Errorf("service: failed to inspect store: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	return o.SeedPlaylists(ctx)
}

// Recommend parses a classifier label and resolves playlists for it. Errors
// from the resolver are returned unwrapped so callers can inspect
// *domain.StoreQueryError directly.
func (o *Orchestrator) Recommend(ctx context.Context, emotion string, languages []string) (domain.RecommendationResult, error) {
	label, err := domain.ParseEmotion(emotion)
	if err != nil {
		return domain.RecommendationResult{}, err
	}
	return o.resolver.Resolve(ctx, label, languages)
}
