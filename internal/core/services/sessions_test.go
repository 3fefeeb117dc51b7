package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

func newTestManager(t *testing.T, classifier *mockClassifier, cfg SessionConfig) *SessionManager {
	t.Helper()
	store := &mockStore{playlists: catalog()}
	if classifier == nil {
		return NewSessionManager(nil, NewResolver(store, time.Second), cfg)
	}
	return NewSessionManager(classifier, NewResolver(store, time.Second), cfg)
}

func confident(gen uint64, label domain.EmotionLabel) domain.Tick {
	return domain.Tick{Generation: gen, Expressions: domain.Expressions{label: 0.9}}
}

func TestSessionManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, SessionConfig{})

	snap, err := m.Create(ctx, []string{"English", " "})
	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []string{"English"}, snap.Languages)
	assert.Equal(t, 1, m.Len())

	_, err = m.Recommend(ctx, snap.ID)
	require.ErrorIs(t, err, domain.ErrNotResolved)

	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSampling, snap.Status)

	for _, l := range []domain.EmotionLabel{domain.Sad, domain.Sad, domain.Happy, domain.Sad, domain.Neutral} {
		res, err := m.DeliverTick(ctx, snap.ID, confident(snap.Generation, l))
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	}

	got, err := m.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	require.NotNil(t, got.Resolved)
	assert.Equal(t, domain.Sad, got.Resolved.Label)

	rec, err := m.Recommend(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFallback, rec.Tier)
	assert.Equal(t, "melancholy", rec.MatchedEmotion)

	require.NoError(t, m.Delete(snap.ID))
	_, err = m.Get(snap.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.ErrorIs(t, m.Delete(snap.ID), domain.ErrSessionNotFound)
}

func TestSessionManager_CreateRequiresLanguage(t *testing.T) {
	m := newTestManager(t, nil, SessionConfig{})
	_, err := m.Create(context.Background(), []string{"", "  "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, m.Len())
}

func TestSessionManager_ClassifierCapability(t *testing.T) {
	ctx := context.Background()
	classifier := &mockClassifier{ready: errors.New("model loading")}
	m := newTestManager(t, classifier, SessionConfig{})

	snap, err := m.Create(ctx, []string{"Hindi"})
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)

	_, err = m.Start(ctx, snap.ID)
	require.ErrorIs(t, err, domain.ErrCapabilityNotReady)

	classifier.setReady(nil)
	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSampling, snap.Status)
}

func TestSessionManager_StaleTicksAfterReset(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, SessionConfig{})
	snap, err := m.Create(ctx, []string{"English"})
	require.NoError(t, err)
	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	oldGen := snap.Generation

	gen, err := m.SamplingGeneration(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, oldGen, gen)

	_, err = m.DeliverTick(ctx, snap.ID, confident(oldGen, domain.Angry))
	require.NoError(t, err)

	snap, err = m.Reset(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	_, err = m.SamplingGeneration(snap.ID)
	require.ErrorIs(t, err, domain.ErrNotSampling)

	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	require.Greater(t, snap.Generation, oldGen)

	res, err := m.DeliverTick(ctx, snap.ID, confident(oldGen, domain.Angry))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Zero(t, res.Session.Accepted)
	assert.Zero(t, res.Session.Ticks)
}

func TestSessionManager_UntaggedTickNeverReachesNewSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, SessionConfig{})
	snap, err := m.Create(ctx, []string{"English"})
	require.NoError(t, err)
	_, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	_, err = m.Reset(snap.ID)
	require.NoError(t, err)
	_, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)

	// A frame captured before the reset, delivered late without its tag.
	late := domain.Tick{Expressions: domain.Expressions{domain.Angry: 0.9}}
	res, err := m.DeliverTick(ctx, snap.ID, late)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.False(t, res.Accepted)

	got, err := m.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSampling, got.Status)
	assert.Zero(t, got.Accepted)
	assert.Empty(t, got.Counts)
	assert.Zero(t, got.Ticks)
}

func TestSessionManager_IdleAbort(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, SessionConfig{IdleTickLimit: 2})
	snap, err := m.Create(ctx, []string{"English"})
	require.NoError(t, err)
	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)

	low := domain.Tick{Generation: snap.Generation, Expressions: domain.Expressions{domain.Happy: 0.1}}
	res, err := m.DeliverTick(ctx, snap.ID, low)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.Ticks)
	res, err = m.DeliverTick(ctx, snap.ID, low)
	require.ErrorIs(t, err, domain.ErrSamplingIdle)
	assert.Equal(t, StatusReady, res.Session.Status)
	assert.Zero(t, res.Session.Ticks, "an aborted session's ticks do not carry over")

	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)
	res, err = m.DeliverTick(ctx, snap.ID, confident(snap.Generation, domain.Happy))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.Session.Ticks)
}

func TestSessionManager_ConcurrentTicks(t *testing.T) {
	ctx := context.Background()
	var fired int
	m := newTestManager(t, nil, SessionConfig{IdleTickLimit: 0})
	snap, err := m.Create(ctx, []string{"English"})
	require.NoError(t, err)
	snap, err = m.Start(ctx, snap.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.DeliverTick(ctx, snap.ID, confident(snap.Generation, domain.Happy))
			if err == nil && res.Accepted {
				mu.Lock()
				fired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := m.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)
	assert.Equal(t, RequiredSamples, got.Accepted)
	assert.Equal(t, RequiredSamples, fired)
}

func TestSessionManager_UnknownSession(t *testing.T) {
	m := newTestManager(t, nil, SessionConfig{})
	_, err := m.Start(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = m.DeliverTick(context.Background(), "missing", domain.Tick{})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.ErrorIs(t, m.ApplyTick(context.Background(), "missing", domain.Tick{}), domain.ErrSessionNotFound)
}
