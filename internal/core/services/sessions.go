package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/metrics"
)

// SessionConfig tunes the SessionManager.
type SessionConfig struct {
	// TTL evicts sessions that have not been touched for this long.
	TTL           time.Duration
	IdleTickLimit int
	ProbeTimeout  time.Duration
}

// DefaultSessionConfig returns the settings used when none are configured.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:           15 * time.Minute,
		IdleTickLimit: 40,
		ProbeTimeout:  2 * time.Second,
	}
}

// SessionSnapshot is a point-in-time copy of one detection session.
type SessionSnapshot struct {
	ID         string
	Status     Status
	Generation uint64
	Accepted   int
	Ticks      int // deliveries in this generation, accepted or not
	Counts     map[domain.EmotionLabel]int
	Languages  []string
	Resolved   *domain.ResolvedEmotion
}

// TickResult reports what one delivered tick did to its session.
type TickResult struct {
	Accepted bool
	Session  SessionSnapshot
}

type session struct {
	mu        sync.Mutex
	id        string
	agg       *Aggregator
	languages []string
	ticks     int
}

func (s *session) snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:         s.id,
		Status:     s.agg.Status(),
		Generation: s.agg.Generation(),
		Accepted:   s.agg.Accepted(),
		Ticks:      s.ticks,
		Counts:     s.agg.Counts(),
		Languages:  append([]string(nil), s.languages...),
	}
	if r, ok := s.agg.Resolved(); ok {
		snap.Resolved = &r
	}
	return snap
}

// SessionManager owns the detection sessions of the service. Each session
// wraps one Aggregator behind its own mutex, so ticks for a session are
// applied one at a time while different sessions proceed independently.
type SessionManager struct {
	sessions   *cache.Cache
	classifier ports.FrameClassifier
	resolver   *Resolver
	cfg        SessionConfig
	logger     zerolog.Logger
}

// NewSessionManager builds a manager. classifier may be nil when clients
// classify frames themselves and only post expressions; sessions are then
// ready as soon as they are created.
func NewSessionManager(classifier ports.FrameClassifier, resolver *Resolver, cfg SessionConfig) *SessionManager {
	def := DefaultSessionConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.IdleTickLimit < 0 {
		cfg.IdleTickLimit = def.IdleTickLimit
	}

	c := cache.New(cfg.TTL, cfg.TTL*2)
	c.OnEvicted(func(string, interface{}) {
		metrics.ActiveSessions.Dec()
	})

	return &SessionManager{
		sessions:   c,
		classifier: classifier,
		resolver:   resolver,
		cfg:        cfg,
		logger:     logging.Component("sessions"),
	}
}

// Create registers a session for the given languages and brings up its
// classifier capability.
func (m *SessionManager) Create(ctx context.Context, languages []string) (SessionSnapshot, error) {
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return SessionSnapshot{}, fmt.Errorf("%w: at least one language is required", domain.ErrInvalidInput)
	}

	id := uuid.NewString()
	s := &session{
		id: id,
		agg: NewAggregator(
			WithIdleTickLimit(m.cfg.IdleTickLimit),
			WithLogger(m.logger.With().Str("session", id).Logger()),
		),
		languages: langs,
	}
	s.agg.MarkLoading()
	m.probe(ctx, s)

	m.sessions.Set(id, s, cache.DefaultExpiration)
	metrics.ActiveSessions.Inc()

	m.logger.Info().Str("session", id).Strs("languages", langs).
		Str("status", s.agg.Status().String()).Msg("session created")
	return s.snapshot(), nil
}

// probe asks the classifier whether it can serve frames. Callers hold s.mu
// or own s exclusively.
func (m *SessionManager) probe(ctx context.Context, s *session) {
	if m.classifier == nil {
		s.agg.SetCapability(true)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.classifier.Ready(pctx); err != nil {
		m.logger.Warn().Err(err).Str("session", s.id).Msg("classifier not ready")
		s.agg.SetCapability(false)
		return
	}
	s.agg.SetCapability(true)
}

func (m *SessionManager) lookup(id string) (*session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	s := v.(*session)
	// Touch to extend the TTL.
	m.sessions.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

func (m *SessionManager) Get(id string) (SessionSnapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Start begins sampling. A session still waiting for its classifier is
// probed again first.
func (m *SessionManager) Start(ctx context.Context, id string) (SessionSnapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.agg.Status(); st == StatusIdle || st == StatusLoading || st == StatusResolved {
		m.probe(ctx, s)
	}
	if _, err := s.agg.Start(); err != nil {
		return s.snapshot(), err
	}
	s.ticks = 0
	return s.snapshot(), nil
}

func (m *SessionManager) Reset(id string) (SessionSnapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.Reset()
	s.ticks = 0
	return s.snapshot(), nil
}

func (m *SessionManager) Delete(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.sessions.Delete(id)
	m.logger.Info().Str("session", id).Msg("session deleted")
	return nil
}

// SamplingGeneration returns the generation frames should be tagged with, or
// ErrNotSampling when the session is not sampling.
func (m *SessionManager) SamplingGeneration(id string) (uint64, error) {
	s, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agg.Status() != StatusSampling {
		return 0, domain.ErrNotSampling
	}
	return s.agg.Generation(), nil
}

// DeliverTick applies one tick to a session. The tick must carry the
// generation Start returned; ticks from an earlier generation are ignored.
// The manager numbers ticks itself.
func (m *SessionManager) DeliverTick(_ context.Context, id string, tick domain.Tick) (TickResult, error) {
	s, err := m.lookup(id)
	if err != nil {
		return TickResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if tick.Generation == 0 {
		return TickResult{Session: s.snapshot()}, fmt.Errorf("%w: tick generation is required", domain.ErrInvalidInput)
	}
	if tick.Generation == s.agg.Generation() {
		tick.Index = s.ticks
		s.ticks++
	}
	accepted, err := s.agg.OnTick(tick)
	if errors.Is(err, domain.ErrSamplingIdle) {
		s.ticks = 0
	}
	return TickResult{Accepted: accepted, Session: s.snapshot()}, err
}

// ApplyTick is DeliverTick for callers that only care about failure.
func (m *SessionManager) ApplyTick(ctx context.Context, id string, tick domain.Tick) error {
	_, err := m.DeliverTick(ctx, id, tick)
	return err
}

// Recommend resolves playlists for a session's decided emotion in the
// languages the session was created with.
func (m *SessionManager) Recommend(ctx context.Context, id string) (domain.RecommendationResult, error) {
	s, err := m.lookup(id)
	if err != nil {
		return domain.RecommendationResult{}, err
	}
	s.mu.Lock()
	resolved, ok := s.agg.Resolved()
	langs := append([]string(nil), s.languages...)
	s.mu.Unlock()

	if !ok {
		return domain.RecommendationResult{}, domain.ErrNotResolved
	}
	return m.resolver.Resolve(ctx, resolved.Label, langs)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	return m.sessions.ItemCount()
}
