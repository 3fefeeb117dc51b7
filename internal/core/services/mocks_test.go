package services

import (
	"context"
	"sync"
	"time"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
)

// mockStore is an in-memory PlaylistStore that records every query.
type mockStore struct {
	mu        sync.Mutex
	playlists []domain.Playlist
	failOn    map[domain.StoreEmotion]error // keyed by query emotion, "" for language-only
	delay     time.Duration
	queries   []ports.PlaylistQuery
}

func (m *mockStore) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	err, fail := m.failOn[q.Emotion]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, err
	}

	langs := make(map[string]bool, len(q.Languages))
	for _, l := range q.Languages {
		langs[l] = true
	}
	var out []domain.Playlist
	for _, p := range m.playlists {
		if len(langs) > 0 && !langs[p.Language] {
			continue
		}
		if q.Emotion != "" && p.Emotion != q.Emotion {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) queriedEmotions() []domain.StoreEmotion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoreEmotion, 0, len(m.queries))
	for _, q := range m.queries {
		out = append(out, q.Emotion)
	}
	return out
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockRepo adds the management side on top of mockStore.
type mockRepo struct {
	mockStore
	getErr     error
	saveErr    error
	replaceErr error

	saved    *domain.Playlist
	replaced []domain.Playlist
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	if m.getErr != nil {
		return domain.Playlist{}, m.getErr
	}
	for _, p := range m.playlists {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Playlist{}, domain.ErrNotFound
}

func (m *mockRepo) Save(ctx context.Context, p domain.Playlist) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = &p
	return nil
}

func (m *mockRepo) ReplaceAll(ctx context.Context, playlists []domain.Playlist) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = playlists
	return nil
}

// mockClassifier returns fixed expressions and a configurable readiness.
type mockClassifier struct {
	mu       sync.Mutex
	ready    error
	exprs    domain.Expressions
	classErr error
}

func (m *mockClassifier) Classify(ctx context.Context, frame []byte) (domain.Expressions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.classErr != nil {
		return nil, m.classErr
	}
	return m.exprs, nil
}

func (m *mockClassifier) Ready(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *mockClassifier) setReady(err error) {
	m.mu.Lock()
	m.ready = err
	m.mu.Unlock()
}

func playlist(id, name, language, emotion string) domain.Playlist {
	return domain.Playlist{ID: id, Name: name, Language: language, Emotion: emotion}
}
