package services

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/metrics"
)

const (
	// RequiredSamples is the number of accepted samples that resolves a session.
	RequiredSamples = 5
	// ConfidenceFloor is exclusive: a sample must be strictly more confident.
	ConfidenceFloor = 0.3
)

// Status is the lifecycle state of an Aggregator.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusSampling
	StatusResolved
)

var statusNames = [...]string{"idle", "loading", "ready", "sampling", "resolved"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if string(b) == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("services: unknown status %q", b)
}

// aggregationState is the vote tally of one session. It is replaced, never
// cleared, when a session starts or resets.
type aggregationState struct {
	counts map[domain.EmotionLabel]int
	order  []domain.EmotionLabel // first-seen order
	total  int
}

func newAggregationState() *aggregationState {
	return &aggregationState{counts: make(map[domain.EmotionLabel]int)}
}

func (s *aggregationState) add(l domain.EmotionLabel) {
	if _, seen := s.counts[l]; !seen {
		s.order = append(s.order, l)
	}
	s.counts[l]++
	s.total++
}

// majority returns the most counted label; ties go to the label inserted first.
func (s *aggregationState) majority() domain.EmotionLabel {
	var best domain.EmotionLabel
	bestCount := 0
	for _, l := range s.order {
		if c := s.counts[l]; c > bestCount {
			best, bestCount = l, c
		}
	}
	return best
}

func (s *aggregationState) snapshot() map[domain.EmotionLabel]int {
	out := make(map[domain.EmotionLabel]int, len(s.counts))
	for l, c := range s.counts {
		out[l] = c
	}
	return out
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithIdleTickLimit aborts a sampling session after n consecutive ticks that
// yield no accepted sample. Zero disables the bound.
func WithIdleTickLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n >= 0 {
			a.idleLimit = n
		}
	}
}

// WithResolvedHandler registers the one-shot notification fired when a
// session resolves. It runs synchronously inside the resolving call.
func WithResolvedHandler(fn func(domain.ResolvedEmotion)) AggregatorOption {
	return func(a *Aggregator) {
		a.onResolved = fn
	}
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

//nolint:gocritic // zerolog.Logger is passed by value
func WithLogger(l zerolog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Aggregator turns a stream of per-tick classifications into one resolved
// emotion. It is owned by a single detection session and is not safe for
// concurrent use: the caller delivers ticks one at a time.
//
// Every Start, Reset and idle abort bumps the generation. Samples and ticks
// carry the generation they were captured under, and anything older than
// the current generation is ignored.
type Aggregator struct {
	state      *aggregationState
	status     Status
	generation uint64
	capable    bool
	idleLimit  int
	idleTicks  int
	resolved   *domain.ResolvedEmotion
	onResolved func(domain.ResolvedEmotion)
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAggregator returns an Aggregator in the Idle state.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		state:  newAggregationState(),
		status: StatusIdle,
		now:    time.Now,
		logger: logging.Component("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MarkLoading records that the classifier capability is being brought up.
// It only moves an Idle aggregator.
func (a *Aggregator) MarkLoading() {
	if a.status == StatusIdle {
		a.status = StatusLoading
	}
}

// SetCapability records whether the classifier is available. Gaining it moves
// Idle or Loading to Ready; losing it moves Ready back to Idle. A running
// session keeps sampling: frames that cannot be classified are dropped.
func (a *Aggregator) SetCapability(available bool) {
	a.capable = available
	switch {
	case available && (a.status == StatusIdle || a.status == StatusLoading):
		a.status = StatusReady
	case !available && a.status == StatusReady:
		a.status = StatusIdle
	}
}

// Start begins a new sampling session and returns its generation.
func (a *Aggregator) Start() (uint64, error) {
	switch a.status {
	case StatusIdle, StatusLoading:
		return a.generation, domain.ErrCapabilityNotReady
	case StatusSampling:
		return a.generation, domain.ErrSessionActive
	case StatusResolved:
		if !a.capable {
			return a.generation, domain.ErrCapabilityNotReady
		}
	}

	a.generation++
	a.state = newAggregationState()
	a.resolved = nil
	a.idleTicks = 0
	a.status = StatusSampling
	a.logger.Debug().Uint64("generation", a.generation).Msg("sampling started")
	return a.generation, nil
}

// OnClassification applies one sample. It reports whether the sample was
// counted. Stale or low-confidence samples are ignored without error; a
// current sample outside Sampling returns ErrNotSampling.
func (a *Aggregator) OnClassification(s domain.ClassificationSample) (bool, error) {
	if s.Generation != a.generation {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleStale).Inc()
		a.logger.Debug().
			Uint64("sample_generation", s.Generation).
			Uint64("generation", a.generation).
			Msg("stale sample ignored")
		return false, nil
	}
	if a.status != StatusSampling {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleIgnored).Inc()
		return false, domain.ErrNotSampling
	}
	if s.Confidence <= ConfidenceFloor || !s.Label.Valid() {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleDropped).Inc()
		a.logger.Debug().
			Str("label", s.Label.String()).
			Float64("confidence", s.Confidence).
			Int("tick", s.Tick).
			Msg("low confidence sample dropped")
		return false, nil
	}

	a.state.add(s.Label)
	a.idleTicks = 0
	metrics.SamplesTotal.WithLabelValues(metrics.SampleAccepted).Inc()

	if a.state.total == RequiredSamples {
		a.resolve()
	}
	return true, nil
}

// OnTick is the synchronous per-tick entry point. It derives the arg-max
// sample from the tick's classification and applies it. A tick whose
// classification failed counts like a dropped sample. When the idle bound is
// reached the session is aborted and ErrSamplingIdle is returned.
func (a *Aggregator) OnTick(t domain.Tick) (bool, error) {
	if t.Generation != a.generation {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleStale).Inc()
		return false, nil
	}
	if a.status != StatusSampling {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleIgnored).Inc()
		return false, domain.ErrNotSampling
	}

	if sample, ok := t.Sample(); ok {
		accepted, err := a.OnClassification(sample)
		if err != nil || accepted {
			return accepted, err
		}
	} else {
		metrics.SamplesTotal.WithLabelValues(metrics.SampleFailed).Inc()
		a.logger.Debug().Err(t.Err).Int("tick", t.Index).Msg("tick without classification")
	}

	a.idleTicks++
	if a.idleLimit > 0 && a.idleTicks >= a.idleLimit {
		a.logger.Info().
			Uint64("generation", a.generation).
			Int("idle_ticks", a.idleTicks).
			Msg("sampling aborted")
		metrics.SessionsAborted.Inc()
		a.Reset()
		return false, domain.ErrSamplingIdle
	}
	return false, nil
}

// Reset discards the current session from any state. Ticks still in flight
// for the discarded session are ignored once they arrive.
func (a *Aggregator) Reset() {
	a.generation++
	a.state = newAggregationState()
	a.resolved = nil
	a.idleTicks = 0
	if a.capable {
		a.status = StatusReady
	} else {
		a.status = StatusIdle
	}
}

func (a *Aggregator) resolve() {
	re := domain.ResolvedEmotion{
		Label:       a.state.majority(),
		SampleCount: a.state.total,
		Counts:      a.state.snapshot(),
		Generation:  a.generation,
		Timestamp:   a.now(),
	}
	a.resolved = &re
	a.status = StatusResolved

	metrics.SessionsResolved.WithLabelValues(re.Label.String()).Inc()
	a.logger.Info().
		Str("emotion", re.Label.String()).
		Uint64("generation", re.Generation).
		Msg("emotion resolved")

	if a.onResolved != nil {
		a.onResolved(re)
	}
}

func (a *Aggregator) Status() Status {
	return a.status
}

func (a *Aggregator) Generation() uint64 {
	return a.generation
}

// Accepted returns the number of samples counted in the current session.
func (a *Aggregator) Accepted() int {
	return a.state.total
}

// Counts returns a copy of the current vote tally.
func (a *Aggregator) Counts() map[domain.EmotionLabel]int {
	return a.state.snapshot()
}

// Resolved returns the session's decision once it exists.
func (a *Aggregator) Resolved() (domain.ResolvedEmotion, bool) {
	if a.resolved == nil {
		return domain.ResolvedEmotion{}, false
	}
	return *a.resolved, true
}
