package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
)

func catalog() []domain.Playlist {
	return []domain.Playlist{
		playlist("p1", "Happy Vibes", "English", "happy"),
		playlist("p2", "Dil Khush", "Hindi", "happy"),
		playlist("p3", "Rainy Days", "English", "melancholy"),
		playlist("p4", "Quiet Hours", "English", "calm"),
		playlist("p5", "Still Water", "English", "peaceful"),
		playlist("p6", "Odia Mix", "Odia", "energetic"),
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		label       domain.EmotionLabel
		languages   []string
		wantTier    domain.Tier
		wantMatched domain.StoreEmotion
		wantIDs     []string
		wantProbes  []domain.StoreEmotion
	}{
		{
			name:        "exact match short-circuits",
			label:       domain.Happy,
			languages:   []string{"English", "Hindi"},
			wantTier:    domain.TierExact,
			wantMatched: "happy",
			wantIDs:     []string{"p1", "p2"},
			wantProbes:  []domain.StoreEmotion{"happy"},
		},
		{
			name:        "fallback stops at first related mood",
			label:       domain.Sad,
			languages:   []string{"English"},
			wantTier:    domain.TierFallback,
			wantMatched: "melancholy",
			wantIDs:     []string{"p3"},
			wantProbes:  []domain.StoreEmotion{"sad", "melancholy"},
		},
		{
			name:        "fallback probes in table order",
			label:       domain.Fearful,
			languages:   []string{"English"},
			wantTier:    domain.TierFallback,
			wantMatched: "calm",
			wantIDs:     []string{"p4"},
			wantProbes:  []domain.StoreEmotion{"fearful", "anxious", "calm"},
		},
		{
			name:        "language only after every related mood",
			label:       domain.Disgusted,
			languages:   []string{"Odia"},
			wantTier:    domain.TierLanguageOnly,
			wantMatched: "",
			wantIDs:     []string{"p6"},
			wantProbes:  []domain.StoreEmotion{"disgusted", "neutral", "calm", ""},
		},
		{
			name:       "empty when nothing matches the languages",
			label:      domain.Disgusted,
			languages:  []string{"Tamil"},
			wantTier:   domain.TierEmpty,
			wantProbes: []domain.StoreEmotion{"disgusted", "neutral", "calm", ""},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{playlists: catalog()}
			r := NewResolver(store, time.Second)

			got, err := r.Resolve(context.Background(), tc.label, tc.languages)
			require.NoError(t, err)

			assert.Equal(t, tc.wantTier, got.Tier)
			assert.Equal(t, tc.label, got.Emotion)
			assert.Equal(t, tc.wantMatched, got.MatchedEmotion)
			assert.Equal(t, tc.wantProbes, store.queriedEmotions())
			assert.Equal(t, tc.wantTier == domain.TierEmpty, got.Empty())

			ids := make([]string, 0, len(got.Playlists))
			for _, p := range got.Playlists {
				ids = append(ids, p.ID)
			}
			if len(tc.wantIDs) == 0 {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tc.wantIDs, ids)
			}
		})
	}
}

func TestResolver_QueriesCarryLanguages(t *testing.T) {
	store := &mockStore{playlists: catalog()}
	r := NewResolver(store, time.Second)

	got, err := r.Resolve(context.Background(), domain.Neutral, []string{" English ", "English", "Hindi", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"English", "Hindi"}, got.Languages)
	for _, q := range store.queries {
		assert.Equal(t, []string{"English", "Hindi"}, q.Languages)
	}
}

func TestResolver_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		label     domain.EmotionLabel
		languages []string
	}{
		{name: "unknown label", label: "joyful", languages: []string{"English"}},
		{name: "empty label", label: "", languages: []string{"English"}},
		{name: "no languages", label: domain.Happy, languages: nil},
		{name: "blank languages", label: domain.Happy, languages: []string{" ", ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{playlists: catalog()}
			r := NewResolver(store, time.Second)

			_, err := r.Resolve(context.Background(), tc.label, tc.languages)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, store.calls(), "store must not be queried")
		})
	}
}

func TestResolver_StoreFailureAborts(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name       string
		failOn     domain.StoreEmotion
		wantTier   domain.Tier
		wantProbes int
	}{
		{name: "exact", failOn: "fearful", wantTier: domain.TierExact, wantProbes: 1},
		{name: "second fallback probe", failOn: "calm", wantTier: domain.TierFallback, wantProbes: 3},
		{name: "language only", failOn: "", wantTier: domain.TierLanguageOnly, wantProbes: 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{
				playlists: []domain.Playlist{playlist("x", "Elsewhere", "Hindi", "calm")},
				failOn:    map[domain.StoreEmotion]error{tc.failOn: boom},
			}
			r := NewResolver(store, time.Second)

			got, err := r.Resolve(context.Background(), domain.Fearful, []string{"English"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStoreQuery)
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, got.Playlists)

			var sqe *domain.StoreQueryError
			require.ErrorAs(t, err, &sqe)
			assert.Equal(t, tc.wantTier, sqe.Tier)
			assert.Equal(t, tc.failOn, sqe.Emotion)
			assert.Equal(t, tc.wantProbes, store.calls(), "no query after the failure")
		})
	}
}

func TestResolver_QueryTimeout(t *testing.T) {
	store := &mockStore{playlists: catalog(), delay: 200 * time.Millisecond}
	r := NewResolver(store, 20*time.Millisecond)

	start := time.Now()
	_, err := r.Resolve(context.Background(), domain.Happy, []string{"English"})
	require.ErrorIs(t, err, domain.ErrStoreQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 1, store.calls())
}

// slowStore ignores its context and answers late.
type slowStore struct{ mockStore }

func (s *slowStore) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	time.Sleep(30 * time.Millisecond)
	return s.mockStore.Query(context.Background(), q)
}

func TestResolver_LateAnswerCountsAsFailure(t *testing.T) {
	store := &slowStore{mockStore{playlists: catalog()}}
	r := NewResolver(store, 5*time.Millisecond)

	_, err := r.Resolve(context.Background(), domain.Happy, []string{"English"})
	require.ErrorIs(t, err, domain.ErrStoreQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolver_CanceledContext(t *testing.T) {
	store := &mockStore{playlists: catalog(), delay: time.Second}
	r := NewResolver(store, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, domain.Happy, []string{"English"})
	require.ErrorIs(t, err, domain.ErrStoreQuery)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResolver_DefaultTimeout(t *testing.T) {
	r := NewResolver(&mockStore{}, 0)
	assert.Equal(t, DefaultQueryTimeout, r.queryTimeout)
}
