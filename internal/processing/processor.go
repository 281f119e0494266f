// Package processing runs the wizard's slow steps (verification, minting) on
// a fixed pool of goroutines so HTTP handlers can return immediately.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Submit when the buffer has no room.
	ErrQueueFull = errors.New("processing queue full")
	// ErrStopped is returned by Submit once the workers have shut down.
	ErrStopped = errors.New("processing stopped")
)

// Job is one unit of background work for a draft. Abort, when set, is
// called instead of Run for jobs still queued at shutdown.
type Job struct {
	DraftID string
	Op      string
	Run     func(ctx context.Context) error
	Abort   func()
}

// Processor consumes Jobs on a bounded set of workers.
type Processor struct {
	log     *zap.Logger
	queue   chan Job
	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New builds a Processor with queue capacity tied to worker count.
func New(workers int, log *zap.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		log:     log,
		queue:   make(chan Job, workers*4),
		workers: workers,
	}
}

// Start launches worker goroutines. When ctx is cancelled they exit and
// every job left in the queue is aborted.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Submit queues a job without blocking.
func (p *Processor) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		p.log.Warn("processor queue full", zap.String("draft_id", job.DraftID), zap.String("op", job.Op))
		return ErrQueueFull
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.stop()
			p.drain()
			return
		case job := <-p.queue:
			p.process(ctx, job)
		}
	}
}

func (p *Processor) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *Processor) drain() {
	for {
		select {
		case job := <-p.queue:
			p.log.Info("job aborted at shutdown", zap.String("draft_id", job.DraftID), zap.String("op", job.Op))
			if job.Abort != nil {
				job.Abort()
			}
		default:
			return
		}
	}
}

func (p *Processor) process(ctx context.Context, job Job) {
	log := p.log.With(zap.String("draft_id", job.DraftID), zap.String("op", job.Op))
	if err := job.Run(ctx); err != nil {
		// The session keeps the fault for the client; nothing to retry here.
		log.Warn("job failed", zap.Error(err))
		return
	}
	log.Debug("job finished")
}
