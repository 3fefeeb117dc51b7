package domain

// Tier is one level of the recommendation fallback cascade.
type Tier int

const (
	TierEmpty Tier = iota
	TierExact
	TierFallback
	TierLanguageOnly
)

var tierNames = map[Tier]string{
	TierEmpty:        "empty",
	TierExact:        "exact",
	TierFallback:     "fallback",
	TierLanguageOnly: "language_only",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText lets tiers serialize by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// RecommendationResult is the outcome of one resolution. An empty result is
// a valid outcome, not an error.
type RecommendationResult struct {
	Playlists []Playlist
	Tier      Tier
	Emotion   EmotionLabel
	// MatchedEmotion is the store emotion that produced the playlists: the
	// label itself for Exact, the related mood for Fallback, and empty for
	// LanguageOnly and Empty.
	MatchedEmotion StoreEmotion
	Languages      []string
}

// Empty reports whether even the loosest tier matched nothing.
func (r RecommendationResult) Empty() bool {
	return r.Tier == TierEmpty
}
