package capture

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrShuttingDown = errors.New("capture service is shutting down")

// jobRunner runs detached jobs with at most a fixed number executing at once.
// Submitted jobs always run eventually; excess jobs wait for a free slot.
// After Close no new jobs are admitted.
type jobRunner struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newJobRunner(limit int) *jobRunner {
	if limit < 1 {
		limit = 1
	}
	return &jobRunner{sem: semaphore.NewWeighted(int64(limit))}
}

func (r *jobRunner) Go(job func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrShuttingDown
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Acquire with a background context cannot fail.
		_ = r.sem.Acquire(context.Background(), 1)
		defer r.sem.Release(1)
		job()
	}()
	return nil
}

func (r *jobRunner) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close stops admission and waits for every admitted job.
func (r *jobRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until the jobs admitted so far have finished. Callers must not
// submit concurrently with Wait; use Close for that.
func (r *jobRunner) Wait() {
	r.wg.Wait()
}
