package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerPool manages a pool of job workers claiming from a shared
// JobStore (adapted from the reference's queue.WorkerPool, generalized
// from a single ent client to the JobStore interface).
type WorkerPool struct {
	podID    string
	store    JobStore
	cfg      Config
	executor JobExecutor
	sink     StatusSink
	workers  []*Worker

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	orphans orphanState
}

// NewWorkerPool constructs a WorkerPool.
func NewWorkerPool(podID string, store JobStore, cfg Config, executor JobExecutor, sink StatusSink) *WorkerPool {
	return &WorkerPool{
		podID:      podID,
		store:      store,
		cfg:        cfg,
		executor:   executor,
		sink:       sink,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan-detection background
// task. Safe to call once; later calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate start", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.cfg, p.executor, p.sink, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
}

// Stop signals every worker to stop and waits for in-flight jobs to
// finish (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped")
}

// RegisterJob records job's cancel function for later Cancel calls.
func (p *WorkerPool) RegisterJob(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[jobID] = cancel
}

// UnregisterJob removes the cancel function once a job finishes.
func (p *WorkerPool) UnregisterJob(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// CancelJob triggers cooperative cancellation for a job running on this
// pod. Returns true if the job was found here (spec.md §4.5
// "Cancellation").
func (p *WorkerPool) CancelJob(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeJobs[jobID]; ok {
		cancel()
		return true
	}
	return false
}

func (p *WorkerPool) activeJobCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.activeJobs)
}

// Health reports the pool's operational status.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	running, err := p.store.CountRunning(ctx)
	if err != nil {
		slog.Error("failed to count running jobs for health check", "error", err)
	}

	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			active++
		}
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastOrphanScan
	recovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        err == nil && len(p.workers) > 0,
		PodID:            p.podID,
		ActiveWorkers:    active,
		TotalWorkers:     len(p.workers),
		ActiveJobs:       p.activeJobCount(),
		MaxConcurrent:    p.cfg.MaxConcurrentJobs,
		QueueDepth:       running,
		WorkerStats:      stats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
