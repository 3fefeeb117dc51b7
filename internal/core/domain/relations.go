package domain

// relatedEmotions maps a classifier label to the store emotions probed, in
// order, when no playlist carries the label itself. The primary label is
// never part of its own sequence.
var relatedEmotions = map[EmotionLabel][]StoreEmotion{
	Happy:     {"joyful", "cheerful", "excited"},
	Sad:       {"melancholy", "emotional", "calm"},
	Angry:     {"intense", "energetic", "aggressive"},
	Fearful:   {"anxious", "calm", "peaceful"},
	Disgusted: {"neutral", "calm"},
	Surprised: {"excited", "energetic", "happy"},
	Neutral:   {"calm", "peaceful", "relaxed"},
}

// RelatedEmotions returns a copy of the fallback sequence for l. The second
// result is false when l has no entry.
func RelatedEmotions(l EmotionLabel) ([]StoreEmotion, bool) {
	seq, ok := relatedEmotions[l]
	if !ok {
		return nil, false
	}
	out := make([]StoreEmotion, len(seq))
	copy(out, seq)
	return out, true
}
