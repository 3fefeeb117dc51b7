package ports

import (
	"context"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

// FrameClassifier scores one video frame against every emotion label.
type FrameClassifier interface {
	Classify(ctx context.Context, frame []byte) (domain.Expressions, error)
	// Ready returns nil once the classifier's model is loaded.
	Ready(ctx context.Context) error
}
