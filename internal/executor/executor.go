package executor

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/metrics"
)

// JobFunc is the unit of work. It must honor ctx cancellation at its own
// stage boundaries; whatever it returns after a cancel is discarded.
type JobFunc func(ctx context.Context) error

// Job is one queued unit of background work.
type Job struct {
	ID       uuid.UUID
	Kind     string
	Priority Priority
	Fn       JobFunc

	state       constants.JobState
	err         error
	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time
	cancel      context.CancelFunc
}

// Status is a point-in-time snapshot of a job.
type Status struct {
	ID          uuid.UUID
	Kind        string
	State       constants.JobState
	Err         error
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

type Config struct {
	Workers  int
	QueueCap int
}

func DefaultConfig() Config {
	return Config{Workers: 4, QueueCap: 256}
}

// Executor runs jobs on a bounded worker pool fed by a priority queue.
// Priority is applied at dequeue; already-running jobs are never preempted.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobHeap
	jobs    map[uuid.UUID]*Job
	seq     uint64
	closing bool

	wg       sync.WaitGroup
	baseCtx  context.Context
	stopBase context.CancelFunc
}

func New(cfg Config, logger *slog.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = DefaultConfig().QueueCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:      cfg,
		logger:   logger,
		jobs:     make(map[uuid.UUID]*Job),
		baseCtx:  ctx,
		stopBase: cancel,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start launches the worker pool.
func (e *Executor) Start() {
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	e.logger.Info("executor.started", "workers", e.cfg.Workers, "queue_cap", e.cfg.QueueCap)
}

// Submit enqueues a job and returns its id. The queue is bounded; a full
// queue is rejected rather than blocking the caller.
func (e *Executor) Submit(kind string, priority Priority, fn JobFunc) (uuid.UUID, error) {
	if fn == nil {
		return uuid.Nil, common.NewAppError("JOB_NIL", "nil job func", common.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return uuid.Nil, common.NewAppError("EXECUTOR_CLOSED", "executor shutting down", common.ErrInternal)
	}
	if e.queue.Len() >= e.cfg.QueueCap {
		return uuid.Nil, common.NewAppError("QUEUE_FULL", "job queue full", common.ErrInternal)
	}

	job := &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Priority:    priority,
		Fn:          fn,
		state:       constants.JobStateQueued,
		submittedAt: time.Now().UTC(),
	}
	e.jobs[job.ID] = job
	e.seq++
	heap.Push(&e.queue, &item{job: job, seq: e.seq})
	e.cond.Signal()

	metrics.JobsSubmitted.WithLabelValues(priority.String()).Inc()
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	e.logger.Debug("executor.submitted", "job_id", job.ID, "kind", kind, "priority", priority)
	return job.ID, nil
}

// Status reports a job's current state.
func (e *Executor) Status(id uuid.UUID) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return Status{}, common.NewAppError("JOB_NOT_FOUND", "job "+id.String(), common.ErrNotFound)
	}
	return Status{
		ID:          job.ID,
		Kind:        job.Kind,
		State:       job.state,
		Err:         job.err,
		SubmittedAt: job.submittedAt,
		StartedAt:   job.startedAt,
		FinishedAt:  job.finishedAt,
	}, nil
}

// Cancel marks a job cancelled. A queued job never runs; a running job gets
// its context cancelled and winds down at its next stage boundary.
func (e *Executor) Cancel(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return common.NewAppError("JOB_NOT_FOUND", "job "+id.String(), common.ErrNotFound)
	}
	switch job.state {
	case constants.JobStateQueued:
		job.state = constants.JobStateCancelled
		job.finishedAt = time.Now().UTC()
		metrics.JobsCompleted.WithLabelValues(string(constants.JobStateCancelled)).Inc()
	case constants.JobStateRunning:
		job.state = constants.JobStateCancelled
		if job.cancel != nil {
			job.cancel()
		}
	default:
		// already terminal
	}
	return nil
}

// Shutdown stops accepting work, cancels everything in flight, and waits for
// workers to drain.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.stopBase()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("executor.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) worker(n int) {
	defer e.wg.Done()
	for {
		job := e.next()
		if job == nil {
			return
		}

		jobCtx, cancel := context.WithCancel(e.baseCtx)
		jobCtx = common.WithJobID(jobCtx, job.ID)

		e.mu.Lock()
		if job.state != constants.JobStateQueued {
			// cancelled while queued
			e.mu.Unlock()
			cancel()
			continue
		}
		job.state = constants.JobStateRunning
		job.startedAt = time.Now().UTC()
		job.cancel = cancel
		e.mu.Unlock()

		err := job.Fn(jobCtx)
		cancel()

		e.mu.Lock()
		job.finishedAt = time.Now().UTC()
		switch {
		case job.state == constants.JobStateCancelled:
			// result discarded; state already set by Cancel
		case err != nil:
			job.state = constants.JobStateFailed
			job.err = err
		default:
			job.state = constants.JobStateCompleted
		}
		final := job.state
		e.mu.Unlock()

		metrics.JobsCompleted.WithLabelValues(string(final)).Inc()
		if err != nil && final == constants.JobStateFailed {
			e.logger.Warn("executor.job_failed", "worker", n, "job_id", job.ID, "kind", job.Kind, "error", err)
		} else {
			e.logger.Debug("executor.job_done", "worker", n, "job_id", job.ID, "kind", job.Kind, "state", final)
		}
	}
}

// next blocks until a job is available or the executor is closing.
func (e *Executor) next() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.queue.Len() == 0 && !e.closing {
		e.cond.Wait()
	}
	if e.queue.Len() == 0 {
		return nil
	}
	it := heap.Pop(&e.queue).(*item)
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	return it.job
}
