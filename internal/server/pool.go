package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agrovate/plategate/internal/pipeline"
)

const (
	AcquireTimeout    = 5 * time.Second
	healthCheckPeriod = 60 * time.Second
)

// PipelineFactory builds one worker pipeline with its own inference
// sessions. Called once per pool slot and again when a slot needs
// replenishing.
type PipelineFactory func() (*pipeline.Pipeline, error)

// Pool hands out pipelines to request handlers. Sessions are not safe for
// concurrent use, so each worker gets a whole pipeline to itself for the
// duration of a request.
type Pool struct {
	pipelines chan *pipeline.Pipeline
	size      int
	factory   PipelineFactory
	log       *zap.Logger

	mu     sync.Mutex
	closed bool

	metrics poolMetrics
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolMetrics is a point-in-time snapshot of pool counters.
type PoolMetrics struct {
	PoolSize        int           `json:"pool_size"`
	InUse           int           `json:"in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time"`
}

func NewPool(factory PipelineFactory, size int, log *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	pool := &Pool{
		pipelines: make(chan *pipeline.Pipeline, size),
		size:      size,
		factory:   factory,
		log:       log,
	}

	for i := 0; i < size; i++ {
		p, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize pipeline %d: %w", i, err)
		}
		pool.pipelines <- p
	}

	go pool.healthCheck()

	return pool, nil
}

func (p *Pool) Acquire(ctx context.Context) (*pipeline.Pipeline, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool is closed")
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	select {
	case pl := <-p.pipelines:
		if pl == nil {
			// Destroy closed the channel after the check above.
			return nil, fmt.Errorf("pool is closed")
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return pl, nil
	case <-time.After(AcquireTimeout):
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, fmt.Errorf("timeout waiting for available pipeline")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) Release(pl *pipeline.Pipeline) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	// The send must stay under the lock so Destroy cannot close the channel
	// between the closed check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		pl.Close()
		return
	}
	p.pipelines <- pl
}

func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.pipelines)

	for pl := range p.pipelines {
		pl.Close()
	}
}

func (p *Pool) healthCheck() {
	ticker := time.NewTicker(healthCheckPeriod)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		available := len(p.pipelines)
		p.mu.Unlock()

		p.metrics.mu.RLock()
		inUse := p.metrics.inUse
		p.metrics.mu.RUnlock()

		// Slots neither idle nor checked out were lost to a failed worker.
		missing := p.size - available - inUse

		if missing > 0 {
			p.replenish(missing)
		}
	}
}

func (p *Pool) replenish(count int) {
	for i := 0; i < count; i++ {
		pl, err := p.factory()
		if err != nil {
			p.log.Warn("pipeline replenish failed", zap.Error(err))
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			pl.Close()
			return
		}
		p.pipelines <- pl
		p.mu.Unlock()
	}
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool) Metrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolMetrics{
		PoolSize:        p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
