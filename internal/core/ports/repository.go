package ports

import (
	"context"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

// PlaylistQuery selects playlists by language and, optionally, emotion.
// An empty Emotion matches any emotion and an empty Languages matches any
// language. Results keep insertion order.
type PlaylistQuery struct {
	Emotion   domain.StoreEmotion
	Languages []string
}

// PlaylistStore is the read side the recommendation core depends on.
type PlaylistStore interface {
	Query(ctx context.Context, q PlaylistQuery) ([]domain.Playlist, error)
}

// PlaylistRepository adds the management operations used outside the core.
type PlaylistRepository interface {
	PlaylistStore
	GetByID(ctx context.Context, id string) (domain.Playlist, error)
	Save(ctx context.Context, p domain.Playlist) error
	// ReplaceAll atomically swaps the whole catalog for playlists.
	ReplaceAll(ctx context.Context, playlists []domain.Playlist) error
}
