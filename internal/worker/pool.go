// Package worker classifies camera frames in the background and feeds the
// results to detection sessions.
package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/metrics"
)

// Job is one frame captured for a session under a given generation.
type Job struct {
	SessionID  string
	Generation uint64
	Frame      []byte
}

// TickSink receives classified ticks. The session manager implements it.
type TickSink interface {
	ApplyTick(ctx context.Context, sessionID string, tick domain.Tick) error
}

type Config struct {
	Workers         int
	QueueSize       int
	ClassifyTimeout time.Duration
}

// Pool manages background workers for frame jobs. Jobs are sharded by
// session ID so one worker handles all frames of a session in order.
type Pool struct {
	classifier ports.FrameClassifier
	sink       TickSink
	timeout    time.Duration
	shards     []chan Job
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	logger     zerolog.Logger
}

// NewPool creates a worker pool with the given worker count and per-worker
// queue size.
func NewPool(classifier ports.FrameClassifier, sink TickSink, cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 5 * time.Second
	}
	shards := make([]chan Job, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan Job, cfg.QueueSize)
	}
	return &Pool{
		classifier: classifier,
		sink:       sink,
		timeout:    cfg.ClassifyTimeout,
		shards:     shards,
		logger:     logging.Component("worker"),
	}
}

// Start launches one goroutine per shard. ctx bounds in-flight classification.
func (p *Pool) Start(ctx context.Context) {
	for i, jobs := range p.shards {
		p.wg.Add(1)
		go func(shard int, jobs <-chan Job) {
			defer p.wg.Done()
			for job := range jobs {
				p.processJob(ctx, job)
			}
			p.logger.Debug().Int("shard", shard).Msg("worker stopped")
		}(i, jobs)
	}
}

// Stop closes the queues and waits for queued jobs to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, jobs := range p.shards {
		close(jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking. It reports false when the job was
// dropped because the session's queue is full or the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.shards[p.shardFor(job.SessionID)] <- job:
		return true
	default:
		metrics.FrameJobsDropped.Inc()
		p.logger.Warn().Str("session", job.SessionID).Msg("frame queue full, dropping job")
		return false
	}
}

func (p *Pool) shardFor(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Pool) processJob(ctx context.Context, job Job) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	start := time.Now()
	exprs, err := p.classifier.Classify(cctx, job.Frame)
	cancel()
	metrics.ClassifyDuration.Observe(time.Since(start).Seconds())

	// A frame that fails to classify still counts as a tick.
	tick := domain.Tick{Generation: job.Generation, Expressions: exprs, Err: err}
	if err != nil {
		p.logger.Debug().Err(err).Str("session", job.SessionID).Msg("frame not classified")
	}

	err = p.sink.ApplyTick(ctx, job.SessionID, tick)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSamplingIdle):
		p.logger.Info().Str("session", job.SessionID).Msg("session aborted after idle frames")
	case errors.Is(err, domain.ErrNotSampling), errors.Is(err, domain.ErrSessionNotFound):
		p.logger.Debug().Err(err).Str("session", job.SessionID).Msg("late frame ignored")
	default:
		p.logger.Warn().Err(err).Str("session", job.SessionID).Msg("failed to deliver tick")
	}
}
