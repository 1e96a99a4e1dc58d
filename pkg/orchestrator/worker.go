package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// WorkerStatus is a worker's current activity state.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// JobRegistry is the subset of WorkerPool a Worker needs for job-cancel
// registration (adapted from the reference's queue.SessionRegistry).
type JobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
}

// Worker polls a JobStore for claimable jobs and drives each through a
// JobExecutor, with a heartbeat so a crashed worker's claim is
// detectable by orphan recovery (adapted from the reference's
// queue.Worker).
type Worker struct {
	id       string
	podID    string
	store    JobStore
	cfg      Config
	executor JobExecutor
	sink     StatusSink
	registry JobRegistry

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker constructs a Worker.
func NewWorker(id, podID string, store JobStore, cfg Config, executor JobExecutor, sink StatusSink, registry JobRegistry) *Worker {
	return &Worker{
		id:       id,
		podID:    podID,
		store:    store,
		cfg:      cfg,
		executor: executor,
		sink:     sink,
		registry: registry,
		stopCh:   make(chan struct{}),
		status:   WorkerStatusIdle,
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its
// current job.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports this worker's current activity.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and drives it through
// the executor (spec.md §4.5, §5 "Backpressure").
func (w *Worker) pollAndProcess(ctx context.Context) error {
	running, err := w.store.CountRunning(ctx)
	if err != nil {
		return err
	}
	if running >= w.cfg.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	job, err := w.store.ClaimNext(ctx, w.podID)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.JobID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.JobID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancelJob := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancelJob()

	w.registry.RegisterJob(job.JobID, cancelJob)
	defer w.registry.UnregisterJob(job.JobID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	go w.runHeartbeat(heartbeatCtx, job.JobID, cancelJob)

	result := w.executor.Execute(jobCtx, job)
	cancelHeartbeat()

	if result == nil {
		result = &ExecutionResult{State: model.JobFailed, FailureCode: model.CodeInternal, FailureMsg: "executor returned nil result"}
	}

	if err := w.store.UpdateState(context.Background(), job.JobID, result.State, result.FailureCode, result.FailureMsg); err != nil {
		log.Error("failed to update terminal job state", "error", err)
		return err
	}

	switch result.State {
	case model.JobSucceeded:
		w.sink.Complete(job.JobID)
	case model.JobCancelled:
		w.sink.Cancelled(job.JobID)
	case model.JobFailed:
		w.sink.Failed(job.JobID, result.FailureMsg)
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete", "state", result.State)
	return nil
}

// runHeartbeat periodically refreshes jobID's heartbeat timestamp so
// orphan detection can tell a live claim from a crashed one, and polls
// for a cross-pod Cancel request, invoking cancel locally the moment one
// is observed (spec.md §4.5 "Cancellation").
func (w *Worker) runHeartbeat(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil {
				slog.Warn("heartbeat update failed", "job_id", jobID, "error", err)
			}
			requested, err := w.store.IsCancelRequested(ctx, jobID)
			if err != nil {
				slog.Warn("cancel-request check failed", "job_id", jobID, "error", err)
				continue
			}
			if requested {
				cancel()
				return
			}
		}
	}
}

// pollInterval returns the poll duration with jitter, spreading worker
// wakeups so concurrent pollers don't thunder on the store.
func (w *Worker) pollInterval() time.Duration {
	base, jitter := w.cfg.PollInterval, w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
