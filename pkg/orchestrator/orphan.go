package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// orphanState tracks orphan-detection metrics, thread-safe (adapted
// from the reference's queue.orphanState).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for jobs stuck in `running`
// whose worker crashed without a heartbeat. Every pod runs this
// independently; recovery is idempotent (spec.md §4.5's durable
// claim/heartbeat protocol, adapted from the reference's
// queue.runOrphanDetection).
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.cfg.OrphanThreshold)

	orphans, err := p.store.FindStaleRunning(ctx, threshold)
	if err != nil {
		return fmt.Errorf("querying orphaned jobs: %w", err)
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.mu.Unlock()

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("detected orphaned jobs", "count", len(orphans))

	recovered := 0
	for _, job := range orphans {
		msg := fmt.Sprintf("orphaned: no heartbeat from pod %s", job.PodID)
		if err := p.store.UpdateState(ctx, job.JobID, model.JobFailed, model.CodeAgentTimeout, msg); err != nil {
			slog.Error("failed to recover orphaned job", "job_id", job.JobID, "error", err)
			continue
		}
		p.sink.Failed(job.JobID, msg)
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	return nil
}

// CleanupStartupOrphans marks as failed any job left `running` under
// podID from a previous process (crash recovery before the pool starts
// claiming new work), mirroring the reference's
// queue.CleanupStartupOrphans.
func CleanupStartupOrphans(ctx context.Context, store JobStore, sink StatusSink, podID string) error {
	jobs, err := store.FindRunningOnPod(ctx, podID)
	if err != nil {
		return fmt.Errorf("querying startup orphans: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	slog.Warn("found startup orphans from previous run", "pod_id", podID, "count", len(jobs))

	for _, job := range jobs {
		msg := fmt.Sprintf("orphaned: pod %s restarted while job was running", podID)
		if err := store.UpdateState(ctx, job.JobID, model.JobFailed, model.CodeAgentTimeout, msg); err != nil {
			slog.Error("failed to mark startup orphan", "job_id", job.JobID, "error", err)
			continue
		}
		sink.Failed(job.JobID, msg)
	}

	return nil
}
