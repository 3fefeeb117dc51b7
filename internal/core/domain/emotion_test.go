package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmotion(t *testing.T) {
	tests := []struct {
		in      string
		want    EmotionLabel
		wantErr bool
	}{
		{in: "happy", want: Happy},
		{in: " Fearful ", want: Fearful},
		{in: "DISGUSTED", want: Disgusted},
		{in: "joyful", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseEmotion(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRelatedEmotions(t *testing.T) {
	want := map[EmotionLabel][]StoreEmotion{
		Happy:     {"joyful", "cheerful", "excited"},
		Sad:       {"melancholy", "emotional", "calm"},
		Angry:     {"intense", "energetic", "aggressive"},
		Fearful:   {"anxious", "calm", "peaceful"},
		Disgusted: {"neutral", "calm"},
		Surprised: {"excited", "energetic", "happy"},
		Neutral:   {"calm", "peaceful", "relaxed"},
	}

	for _, l := range Labels() {
		seq, ok := RelatedEmotions(l)
		require.True(t, ok, "missing entry for %s", l)
		assert.Equal(t, want[l], seq)
		assert.NotContains(t, seq, l.String(), "fallback for %s must not include itself", l)
	}

	_, ok := RelatedEmotions("joyful")
	assert.False(t, ok)
}

func TestRelatedEmotions_ReturnsCopy(t *testing.T) {
	seq, _ := RelatedEmotions(Happy)
	seq[0] = "mutated"

	again, _ := RelatedEmotions(Happy)
	assert.Equal(t, StoreEmotion("joyful"), again[0])
}

func TestExpressions_ArgMax(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expressions
		want     EmotionLabel
		wantConf float64
		wantOK   bool
	}{
		{
			name:     "picks highest probability",
			expr:     Expressions{Happy: 0.2, Sad: 0.7, Neutral: 0.1},
			want:     Sad,
			wantConf: 0.7,
			wantOK:   true,
		},
		{
			name:     "ties go to canonical order",
			expr:     Expressions{Neutral: 0.5, Angry: 0.5},
			want:     Angry,
			wantConf: 0.5,
			wantOK:   true,
		},
		{
			name:     "ignores unknown labels",
			expr:     Expressions{"contempt": 0.99, Happy: 0.4},
			want:     Happy,
			wantConf: 0.4,
			wantOK:   true,
		},
		{
			name: "empty output",
			expr: Expressions{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, conf, ok := tc.expr.ArgMax()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
			assert.InDelta(t, tc.wantConf, conf, 1e-9)
		})
	}
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "exact", TierExact.String())
	assert.Equal(t, "fallback", TierFallback.String())
	assert.Equal(t, "language_only", TierLanguageOnly.String())
	assert.Equal(t, "empty", TierEmpty.String())
	assert.Equal(t, "unknown", Tier(42).String())
}
