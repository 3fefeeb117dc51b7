package domain

import (
	"fmt"
	"strings"
)

// EmotionLabel is one value of the classifier's closed label set.
type EmotionLabel string

const (
	Happy     EmotionLabel = "happy"
	Sad       EmotionLabel = "sad"
	Angry     EmotionLabel = "angry"
	Fearful   EmotionLabel = "fearful"
	Disgusted EmotionLabel = "disgusted"
	Surprised EmotionLabel = "surprised"
	Neutral   EmotionLabel = "neutral"
)

// classifierLabels is the canonical label order. Arg-max ties resolve to the
// label that appears first here.
var classifierLabels = [...]EmotionLabel{Happy, Sad, Angry, Fearful, Disgusted, Surprised, Neutral}

// Labels returns the classifier's label set in canonical order.
func Labels() []EmotionLabel {
	out := make([]EmotionLabel, len(classifierLabels))
	copy(out, classifierLabels[:])
	return out
}

// Valid reports whether l belongs to the classifier's label set.
func (l EmotionLabel) Valid() bool {
	for _, known := range classifierLabels {
		if l == known {
			return true
		}
	}
	return false
}

func (l EmotionLabel) String() string {
	return string(l)
}

// ParseEmotion normalizes s and returns the matching classifier label.
func ParseEmotion(s string) (EmotionLabel, error) {
	l := EmotionLabel(NormalizeEmotion(s))
	if !l.Valid() {
		return "", fmt.Errorf("%w: unrecognized emotion %q", ErrInvalidInput, s)
	}
	return l, nil
}

// StoreEmotion is an emotion tag as stored on playlists. The store vocabulary
// is wider than the classifier's: it also holds related moods such as
// "joyful" or "melancholy" that only the fallback tier ever queries.
type StoreEmotion = string

// NormalizeEmotion trims and lower-cases an emotion tag.
func NormalizeEmotion(s string) StoreEmotion {
	return strings.ToLower(strings.TrimSpace(s))
}
