package job

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"squeeze/logger"
)

// JobState represents the current state of a job
type JobState int

const (
	JobStatePending JobState = iota
	JobStateProcessing
	JobStateCompleted
	JobStateFailed
	JobStateCancelled
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	case JobStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned when no worker frees up within the queue timeout.
	ErrBusy = errors.New("all workers are busy")
	// ErrJobNotFound is returned for ids that are neither queued nor running.
	ErrJobNotFound = errors.New("job not found")
)

// Stats is a point-in-time snapshot of the runner.
type Stats struct {
	Workers   int   `json:"workers"`
	Waiting   int   `json:"waiting"`
	InFlight  int   `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Runner bounds how many jobs execute at once. Jobs that cannot get a worker
// slot within the queue timeout are rejected with ErrBusy.
type Runner struct {
	sem          *semaphore.Weighted
	workers      int
	queueTimeout time.Duration

	mu        sync.RWMutex
	jobStates map[string]JobState           // id -> state, only while queued or running
	waiting   map[string]context.CancelFunc // id -> cancel for queued jobs
	completed int64
	failed    int64
	rejected  int64

	// afterAcquire, when set, runs once a slot is won and before the job
	// is marked processing.
	afterAcquire func(id string)
}

// NewRunner creates a runner with the given number of worker slots.
// A non-positive queueTimeout waits as long as the caller's context allows.
func NewRunner(workers int, queueTimeout time.Duration) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		sem:          semaphore.NewWeighted(int64(workers)),
		workers:      workers,
		queueTimeout: queueTimeout,
		jobStates:    make(map[string]JobState),
		waiting:      make(map[string]context.CancelFunc),
	}
}

// Run waits for a worker slot, then runs fn under id. fn's error is returned
// unchanged.
func (r *Runner) Run(ctx context.Context, id string, fn func(context.Context) error) error {
	var waitCtx context.Context
	var cancel context.CancelFunc
	if r.queueTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, r.queueTimeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}

	r.mu.Lock()
	r.jobStates[id] = JobStatePending
	r.waiting[id] = cancel
	r.mu.Unlock()

	err := r.sem.Acquire(waitCtx, 1)
	cancelled := errors.Is(waitCtx.Err(), context.Canceled) && ctx.Err() == nil
	cancel()
	if err == nil && r.afterAcquire != nil {
		r.afterAcquire(id)
	}

	r.mu.Lock()
	delete(r.waiting, id)
	if err != nil {
		delete(r.jobStates, id)
		r.rejected++
		r.mu.Unlock()
		if cancelled {
			logger.Infof("Job %s cancelled while waiting for a worker", id)
			return errors.Wrapf(context.Canceled, "job %s cancelled", id)
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "waiting for worker")
		}
		logger.Warnf("Job %s rejected: no worker within %s", id, r.queueTimeout)
		return errors.Mark(errors.Wrapf(err, "job %s", id), ErrBusy)
	}
	if r.jobStates[id] == JobStateCancelled {
		// CancelJob ran between Acquire returning and the lock above
		delete(r.jobStates, id)
		r.rejected++
		r.mu.Unlock()
		r.sem.Release(1)
		logger.Infof("Job %s cancelled while waiting for a worker", id)
		return errors.Wrapf(context.Canceled, "job %s", id)
	}
	r.jobStates[id] = JobStateProcessing
	r.mu.Unlock()

	defer r.sem.Release(1)
	err = fn(ctx)

	r.mu.Lock()
	delete(r.jobStates, id)
	if err != nil {
		r.failed++
	} else {
		r.completed++
	}
	r.mu.Unlock()
	return err
}

// CancelJob cancels a job that is still waiting for a worker. Running jobs
// cannot be cancelled.
func (r *Runner) CancelJob(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.jobStates[id]
	if !exists {
		return errors.Wrapf(ErrJobNotFound, "job %s", id)
	}

	switch state {
	case JobStateProcessing:
		return errors.Newf("job %s is currently processing and cannot be cancelled", id)
	case JobStatePending:
		cancel, exists := r.waiting[id]
		if !exists {
			return errors.Newf("job %s is pending but not active", id)
		}
		cancel()
		delete(r.waiting, id)
		r.jobStates[id] = JobStateCancelled
		return nil
	default:
		return errors.Newf("job %s is in state %s", id, state)
	}
}

// GetJobState returns the current state of a queued or running job
func (r *Runner) GetJobState(id string) (JobState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, exists := r.jobStates[id]
	return state, exists
}

// Stats returns current counters.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Workers:   r.workers,
		Completed: r.completed,
		Failed:    r.failed,
		Rejected:  r.rejected,
	}
	for _, state := range r.jobStates {
		switch state {
		case JobStatePending:
			s.Waiting++
		case JobStateProcessing:
			s.InFlight++
		}
	}
	return s
}
