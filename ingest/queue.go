package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes one ingestion run and records its permanent failure.
// Pipeline is the production implementation; tests inject fakes.
type Runner interface {
	Run(ctx context.Context, uploadID uint) error
	Failed(uploadID uint, cause error)
}

// QueueConfig tunes the dispatch behavior of the ingestion queue.
type QueueConfig struct {
	// Workers is how many uploads may process concurrently.
	Workers int
	// Tries is the total attempt count per upload before giving up.
	Tries int
	// Timeout is the wall-clock budget for a single attempt.
	Timeout time.Duration
	// Backoff is the delay before the second attempt; it doubles per retry.
	Backoff time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Tries <= 0 {
		c.Tries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	return c
}

// Queue is the deferred-execution trigger for the pipeline: a fixed worker
// pool draining upload ids from a buffered channel. Each job gets a
// wall-clock timeout and a bounded number of attempts with exponential
// backoff; after the last failed attempt the runner's Failed hook fires.
type Queue struct {
	runner Runner
	log    *zap.Logger
	cfg    QueueConfig
	jobs   chan uint
	wg     sync.WaitGroup
}

// NewQueue builds a queue around the runner. Call Start before Enqueue.
func NewQueue(runner Runner, log *zap.Logger, cfg QueueConfig) *Queue {
	return &Queue{
		runner: runner,
		log:    log,
		cfg:    cfg.withDefaults(),
		jobs:   make(chan uint, 1024),
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for id := range q.jobs {
				q.execute(id)
			}
		}()
	}
}

// Enqueue schedules one upload for processing. Blocks only when the backlog
// is full. Must not be called after Stop.
func (q *Queue) Enqueue(uploadID uint) {
	q.jobs <- uploadID
}

// Stop drains the backlog and waits for in-flight runs to finish.
func (q *Queue) Stop() {
	close(q.jobs)
	q.wg.Wait()
}

func (q *Queue) execute(uploadID uint) {
	var err error
	delay := q.cfg.Backoff
	for attempt := 1; attempt <= q.cfg.Tries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.Timeout)
		err = q.runner.Run(ctx, uploadID)
		cancel()
		if err == nil {
			return
		}
		q.log.Warn("ingestion attempt failed",
			zap.Uint("upload_id", uploadID),
			zap.Int("attempt", attempt),
			zap.Int("tries", q.cfg.Tries),
			zap.Error(err))
		if attempt < q.cfg.Tries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	q.runner.Failed(uploadID, err)
}
