// Package indexer provides an asynchronous worker pool that persists
// incoming messages and indexes them into semantic memory.
//
// The pool decouples embedding work from the HTTP hot path so that a slow
// embedding provider never blocks message ingestion.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
)

var (
	// A single worker keeps provider calls serialized.
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Messages []*storage.Message
}

// BatchIndexer is the subset of semantic.Memory the pool drives.
type BatchIndexer interface {
	IndexBatchMessages(ctx context.Context, msgs []*storage.Message) (*semantic.BatchIndexResult, error)
}

// Writer persists messages before they are indexed.
type Writer interface {
	Put(ctx context.Context, msgs ...*storage.Message) error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Indexer embeds and indexes each job's messages.
	Indexer BatchIndexer

	// Writer is the optional message store messages are written to first.
	Writer Writer

	// NumWorkers is the number of background workers in the pool (defaults to 1).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnDone is called after each job with its outcome.
	OnDone func(job Job, res *semantic.BatchIndexResult, err error)
}

// Pool processes indexing jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config, logger *slog.Logger) (*Pool, error) {
	if c.Indexer == nil {
		return nil, errors.New("indexer is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "messages", len(job.Messages))
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "messages", len(job.Messages))
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "messages", len(job.Messages))
		return false
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("indexing worker stopped", "worker_id", id)
}

// processJob stores the job's messages when a writer is configured, then
// indexes them. Errors are logged since there is no caller to return them to.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	res, err := p.run(ctx, job)
	if err != nil {
		p.logger.Error("async indexing failed", "messages", len(job.Messages), "error", err)
	} else {
		p.logger.Info("messages indexed",
			"indexed", res.Indexed,
			"skipped", res.Skipped,
			"duration", res.Duration,
		)
	}

	if p.config.OnDone != nil {
		p.config.OnDone(job, res, err)
	}
}

func (p *Pool) run(ctx context.Context, job Job) (*semantic.BatchIndexResult, error) {
	if p.config.Writer != nil {
		if err := p.config.Writer.Put(ctx, job.Messages...); err != nil {
			return nil, fmt.Errorf("storing messages: %w", err)
		}
	}

	return p.config.Indexer.IndexBatchMessages(ctx, job.Messages)
}
