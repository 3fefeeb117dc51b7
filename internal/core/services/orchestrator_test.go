package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

func newTestOrchestrator(repo *mockRepo) *Orchestrator {
	o := NewOrchestrator(repo, NewResolver(repo, time.Second))
	o.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func TestOrchestrator_AddSongToPlaylist(t *testing.T) {
	existing := playlist("pl-1", "Test Playlist", "English", "happy")

	tests := []struct {
		name      string
		repo      *mockRepo
		song      domain.Song
		wantErr   error
		wantSaved bool
	}{
		{
			name:      "Happy Path",
			repo:      &mockRepo{mockStore: mockStore{playlists: []domain.Playlist{existing}}},
			song:      domain.Song{Title: "Song One", Artist: "Artist A", YouTubeID: "abc123"},
			wantSaved: true,
		},
		{
			name:    "Playlist missing",
			repo:    &mockRepo{},
			song:    domain.Song{Title: "Song One", YouTubeID: "abc123"},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "Invalid song",
			repo:    &mockRepo{mockStore: mockStore{playlists: []domain.Playlist{existing}}},
			song:    domain.Song{Artist: "Nobody"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "Repository save error",
			repo: &mockRepo{
				mockStore: mockStore{playlists: []domain.Playlist{existing}},
				saveErr:   errors.New("save failed"),
			},
			song:    domain.Song{Title: "Song Two", YouTubeID: "def456"},
			wantErr: errors.New("save failed"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrchestrator(tc.repo)

			got, err := o.AddSongToPlaylist(context.Background(), "pl-1", tc.song)
			if tc.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tc.wantErr, domain.ErrNotFound) || errors.Is(tc.wantErr, domain.ErrInvalidInput) {
					assert.ErrorIs(t, err, tc.wantErr)
				}
				assert.Nil(t, tc.repo.saved, "did not expect Save to succeed")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tc.repo.saved)
			require.Len(t, tc.repo.saved.Songs, 1)
			assert.Equal(t, tc.song, tc.repo.saved.Songs[0])
			assert.Equal(t, *tc.repo.saved, got)
		})
	}
}

func TestOrchestrator_CreatePlaylist(t *testing.T) {
	repo := &mockRepo{}
	o := newTestOrchestrator(repo)

	got, err := o.CreatePlaylist(context.Background(), " Night Drive ", "English", "Calm", []domain.Song{
		{Title: "Nightcall", Artist: "Kavinsky", URL: "https://example.com/nightcall"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Night Drive", got.Name)
	assert.Equal(t, domain.StoreEmotion("calm"), got.Emotion)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), got.CreatedAt)
	require.NotNil(t, repo.saved)
	assert.Equal(t, got, *repo.saved)

	_, err = o.CreatePlaylist(context.Background(), "Twice", "English", "calm", []domain.Song{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: "https://example.com/a"},
	})
	require.ErrorIs(t, err, domain.ErrDuplicateSong)

	_, err = o.CreatePlaylist(context.Background(), "", "English", "calm", nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOrchestrator_QueryPlaylists(t *testing.T) {
	repo := &mockRepo{mockStore: mockStore{playlists: catalog()}}
	o := newTestOrchestrator(repo)

	got, err := o.QueryPlaylists(context.Background(), " HAPPY ", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = o.QueryPlaylists(context.Background(), "", []string{"English", " "})
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, []string{"English"}, repo.queries[1].Languages)

	// No fallback for management queries.
	got, err = o.QueryPlaylists(context.Background(), "sad", []string{"English"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOrchestrator_SeedPlaylists(t *testing.T) {
	repo := &mockRepo{}
	o := newTestOrchestrator(repo)

	n, err := o.SeedPlaylists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Len(t, repo.replaced, 9)

	repo.replaceErr = errors.New("disk full")
	_, err = o.SeedPlaylists(context.Background())
	require.Error(t, err)

	o.catalog = func() ([]domain.Playlist, error) { return nil, errors.New("bad yaml") }
	_, err = o.SeedPlaylists(context.Background())
	require.ErrorContains(t, err, "bad yaml")
}

func TestOrchestrator_SeedIfEmpty(t *testing.T) {
	repo := &mockRepo{}
	o := newTestOrchestrator(repo)

	n, err := o.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	repo.replaced = nil
	repo.playlists = catalog()
	n, err = o.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, repo.replaced, "non-empty store must not be replaced")

	repo.playlists = nil
	repo.failOn = map[domain.StoreEmotion]error{"": errors.New("db down")}
	_, err = o.SeedIfEmpty(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestOrchestrator_Recommend(t *testing.T) {
	repo := &mockRepo{mockStore: mockStore{playlists: catalog()}}
	o := newTestOrchestrator(repo)

	got, err := o.Recommend(context.Background(), "Sad", []string{"English"})
	require.NoError(t, err)
	assert.Equal(t, domain.TierFallback, got.Tier)
	assert.Equal(t, domain.Sad, got.Emotion)

	_, err = o.Recommend(context.Background(), "melancholy", []string{"English"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
