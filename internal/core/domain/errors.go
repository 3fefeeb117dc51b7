package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("domain: not found")
	ErrInvalidInput = errors.New("domain: invalid input")

	// ErrReadOnlyStore is returned by stores that only serve queries.
	ErrReadOnlyStore = errors.New("domain: playlist store is read-only")

	// ErrStoreQuery marks a failed Playlist Store query. Match it with
	// errors.Is; the concrete value is a *StoreQueryError.
	ErrStoreQuery = errors.New("domain: store query failed")

	ErrCapabilityNotReady = errors.New("domain: classifier capability not ready")
	ErrSessionActive      = errors.New("domain: detection session already sampling")
	ErrNotSampling        = errors.New("domain: detection session is not sampling")
	ErrSamplingIdle       = errors.New("domain: detection session aborted after idle ticks")
	ErrSessionNotFound    = errors.New("domain: detection session not found")
	ErrNotResolved        = errors.New("domain: detection session has not resolved an emotion")
)

// StoreQueryError carries the tier and emotion of the query that failed.
type StoreQueryError struct {
	Tier    Tier
	Emotion StoreEmotion
	Err     error
}

func (e *StoreQueryError) Error() string {
	if e.Emotion == "" {
		return fmt.Sprintf("store query failed (tier %s): %v", e.Tier, e.Err)
	}
	return fmt.Sprintf("store query failed (tier %s, emotion %q): %v", e.Tier, e.Emotion, e.Err)
}

func (e *StoreQueryError) Unwrap() error {
	return e.Err
}

func (e *StoreQueryError) Is(target error) bool {
	return target == ErrStoreQuery
}
