package domain

import "time"

// Expressions is one classifier output: a probability per label. Values are
// independent and need not sum to 1.
type Expressions map[EmotionLabel]float64

// ArgMax returns the most probable classifier label. Ties go to the label
// that comes first in canonical order; labels outside the set are ignored.
// ok is false when e holds no known label.
func (e Expressions) ArgMax() (label EmotionLabel, confidence float64, ok bool) {
	for _, l := range classifierLabels {
		p, present := e[l]
		if !present {
			continue
		}
		if !ok || p > confidence {
			label, confidence, ok = l, p, true
		}
	}
	return label, confidence, ok
}

// ClassificationSample is the arg-max of one tick's classification.
type ClassificationSample struct {
	Label      EmotionLabel
	Confidence float64
	Tick       int
	// Generation is the session generation the tick was captured under.
	Generation uint64
}

// Tick is one classifier-to-aggregator delivery. Err is set when the frame
// could not be classified.
type Tick struct {
	Generation  uint64
	Index       int
	Expressions Expressions
	Err         error
}

// Sample derives the tick's classification sample.
func (t Tick) Sample() (ClassificationSample, bool) {
	if t.Err != nil {
		return ClassificationSample{}, false
	}
	label, confidence, ok := t.Expressions.ArgMax()
	if !ok {
		return ClassificationSample{}, false
	}
	return ClassificationSample{
		Label:      label,
		Confidence: confidence,
		Tick:       t.Index,
		Generation: t.Generation,
	}, true
}

// ResolvedEmotion is the single decision a detection session produces.
type ResolvedEmotion struct {
	Label       EmotionLabel
	SampleCount int
	Counts      map[EmotionLabel]int
	Generation  uint64
	Timestamp   time.Time
}
