package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/metrics"
)

// DefaultQueryTimeout bounds each individual store query.
const DefaultQueryTimeout = 3 * time.Second

// tierPlan is one level of the cascade: its queries run in order and the
// first nonempty answer wins the tier.
type tierPlan struct {
	tier     domain.Tier
	emotions []domain.StoreEmotion // "" queries without an emotion filter
}

// Resolver turns a resolved emotion and a language set into playlists
// through the Exact, Fallback and Language-only tiers.
type Resolver struct {
	store        ports.PlaylistStore
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// NewResolver constructs a Resolver. A non-positive timeout selects
// DefaultQueryTimeout.
func NewResolver(store ports.PlaylistStore, queryTimeout time.Duration) *Resolver {
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &Resolver{
		store:        store,
		queryTimeout: queryTimeout,
		logger:       logging.Component("resolver"),
	}
}

// plan lists the cascade for label. Adding a tier only changes this list.
func plan(label domain.EmotionLabel) []tierPlan {
	plans := []tierPlan{{tier: domain.TierExact, emotions: []domain.StoreEmotion{label.String()}}}
	if related, ok := domain.RelatedEmotions(label); ok {
		plans = append(plans, tierPlan{tier: domain.TierFallback, emotions: related})
	}
	return append(plans, tierPlan{tier: domain.TierLanguageOnly, emotions: []domain.StoreEmotion{""}})
}

// Resolve runs the cascade. Tiers run strictly one after another and stop at
// the first nonempty result. A store failure aborts the whole resolution with
// a *domain.StoreQueryError; an empty outcome is TierEmpty with a nil error.
func (r *Resolver) Resolve(ctx context.Context, label domain.EmotionLabel, languages []string) (domain.RecommendationResult, error) {
	langs, err := validateResolveInput(label, languages)
	if err != nil {
		return domain.RecommendationResult{}, err
	}

	result := domain.RecommendationResult{Emotion: label, Languages: langs, Tier: domain.TierEmpty}
	for _, p := range plan(label) {
		for _, emotion := range p.emotions {
			playlists, err := r.query(ctx, p.tier, ports.PlaylistQuery{Emotion: emotion, Languages: langs})
			if err != nil {
				return domain.RecommendationResult{}, err
			}
			if len(playlists) == 0 {
				continue
			}
			result.Tier = p.tier
			result.MatchedEmotion = emotion
			result.Playlists = playlists
			r.logResult(result)
			return result, nil
		}
	}

	r.logResult(result)
	return result, nil
}

func (r *Resolver) query(ctx context.Context, tier domain.Tier, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	start := time.Now()
	playlists, err := r.store.Query(qctx, q)
	metrics.StoreQueryDuration.WithLabelValues(tier.String()).Observe(time.Since(start).Seconds())
	if err == nil {
		// Expiry counts as a failure even when the store ignored its context.
		err = qctx.Err()
	}
	if err != nil {
		metrics.StoreQueryErrors.WithLabelValues(tier.String()).Inc()
		r.logger.Warn().Err(err).
			Str("tier", tier.String()).
			Str("emotion", q.Emotion).
			Strs("languages", q.Languages).
			Msg("store query failed")
		return nil, &domain.StoreQueryError{Tier: tier, Emotion: q.Emotion, Err: err}
	}
	return playlists, nil
}

//nolint:gocritic // result is small and logged by value
func (r *Resolver) logResult(result domain.RecommendationResult) {
	metrics.ResolutionsTotal.WithLabelValues(result.Tier.String()).Inc()
	r.logger.Info().
		Str("emotion", result.Emotion.String()).
		Str("tier", result.Tier.String()).
		Str("matched", result.MatchedEmotion).
		Int("playlists", len(result.Playlists)).
		Msg("recommendation resolved")
}

// validateResolveInput rejects unknown labels and empty language sets, and
// returns the trimmed, de-duplicated languages.
func validateResolveInput(label domain.EmotionLabel, languages []string) ([]string, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("%w: unrecognized emotion %q", domain.ErrInvalidInput, label)
	}
	langs := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		langs = append(langs, l)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("%w: at least one language is required", domain.ErrInvalidInput)
	}
	return langs, nil
}
