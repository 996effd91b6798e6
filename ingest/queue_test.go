package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner records every attempt and fails a configurable number of times
// per upload id.
type fakeRunner struct {
	mu       sync.Mutex
	failures map[uint]int
	runs     map[uint]int
	failed   map[uint]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		failures: map[uint]int{},
		runs:     map[uint]int{},
		failed:   map[uint]error{},
	}
}

func (r *fakeRunner) Run(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id]++
	if r.failures[id] > 0 {
		r.failures[id]--
		return errors.New("transient failure")
	}
	return nil
}

func (r *fakeRunner) Failed(id uint, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = cause
}

func (r *fakeRunner) snapshot(id uint) (runs int, failedErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id], r.failed[id]
}

func TestQueueRunsJob(t *testing.T) {
	runner := newFakeRunner()
	q := NewQueue(runner, zap.NewNop(), QueueConfig{Workers: 1, Backoff: time.Millisecond})
	q.Start()

	q.Enqueue(7)
	q.Stop()

	runs, failedErr := runner.snapshot(7)
	assert.Equal(t, 1, runs)
	assert.NoError(t, failedErr)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	runner := newFakeRunner()
	runner.failures[7] = 2 // fail twice, succeed on third try

	q := NewQueue(runner, zap.NewNop(), QueueConfig{Workers: 1, Tries: 3, Backoff: time.Millisecond})
	q.Start()
	q.Enqueue(7)
	q.Stop()

	runs, failedErr := runner.snapshot(7)
	assert.Equal(t, 3, runs)
	assert.NoError(t, failedErr)
}

func TestQueueExhaustedRetriesFireFailedHook(t *testing.T) {
	runner := newFakeRunner()
	runner.failures[7] = 10 // never succeeds within the budget

	q := NewQueue(runner, zap.NewNop(), QueueConfig{Workers: 1, Tries: 3, Backoff: time.Millisecond})
	q.Start()
	q.Enqueue(7)
	q.Stop()

	runs, failedErr := runner.snapshot(7)
	assert.Equal(t, 3, runs)
	require.Error(t, failedErr)
	assert.EqualError(t, failedErr, "transient failure")
}

func TestQueueProcessesBacklogAcrossWorkers(t *testing.T) {
	runner := newFakeRunner()
	q := NewQueue(runner, zap.NewNop(), QueueConfig{Workers: 4, Backoff: time.Millisecond})
	q.Start()

	for id := uint(1); id <= 20; id++ {
		q.Enqueue(id)
	}
	q.Stop()

	for id := uint(1); id <= 20; id++ {
		runs, failedErr := runner.snapshot(id)
		assert.Equal(t, 1, runs, "upload %d", id)
		assert.NoError(t, failedErr)
	}
}

func TestQueueConfigDefaults(t *testing.T) {
	cfg := QueueConfig{}.withDefaults()
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.Tries)
	assert.Equal(t, 30*time.Minute, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Backoff)
}
