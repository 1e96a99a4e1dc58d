// Package orchestrator implements the Scheduler: the Job state machine,
// level fan-out/join, partial-failure semantics and a worker pool that
// claims jobs with a heartbeat/orphan-recovery protocol, adapted from
// the reference's pkg/queue (WorkerPool, Worker, orphan detection) but
// generalized from a single AlertSession row to the Job/level/agent
// shape spec.md §4.5 describes.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// Sentinel errors surfaced by the pool's claim loop.
var (
	ErrNoJobsAvailable = errors.New("no jobs available")
	ErrAtCapacity      = errors.New("at capacity")
)

// Config bounds the worker pool's concurrency and timing, mirroring the
// reference's QueueConfig.
type Config struct {
	WorkerCount             int
	MaxConcurrentJobs       int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	HeartbeatInterval       time.Duration
	OrphanThreshold         time.Duration
	OrphanDetectionInterval time.Duration
	JobTimeout              time.Duration
	PerAgentToolConcurrency int
}

// DefaultConfig returns sane defaults for a single-process deployment.
func DefaultConfig() Config {
	return Config{
		WorkerCount:             4,
		MaxConcurrentJobs:       50,
		PollInterval:            250 * time.Millisecond,
		PollIntervalJitter:      50 * time.Millisecond,
		HeartbeatInterval:       10 * time.Second,
		OrphanThreshold:         2 * time.Minute,
		OrphanDetectionInterval: 30 * time.Second,
		JobTimeout:              5 * time.Minute,
		PerAgentToolConcurrency: 4,
	}
}

// JobStore is the persistence surface the pool and engine need for the
// Job entity (spec.md §3). The Postgres-backed implementation lives in
// pkg/store/postgres; MemoryJobStore below serves tests and standalone
// wiring.
type JobStore interface {
	Insert(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, tenantID, jobID string) (*model.Job, error)
	// ClaimNext atomically transitions the oldest queued job to running
	// under podID, or returns ErrNoJobsAvailable.
	ClaimNext(ctx context.Context, podID string) (*model.Job, error)
	UpdateState(ctx context.Context, jobID string, state model.JobState, failureCode model.Code, failureMsg string) error
	Heartbeat(ctx context.Context, jobID string) error
	CountRunning(ctx context.Context) (int, error)
	// FindStaleRunning returns jobs stuck in `running` whose last
	// heartbeat predates threshold (orphan detection).
	FindStaleRunning(ctx context.Context, threshold time.Time) ([]*model.Job, error)
	FindRunningOnPod(ctx context.Context, podID string) ([]*model.Job, error)
	// RequestCancel flags jobID for cooperative cancellation. A job
	// claimed by a different pod than the one handling the Cancel call
	// only observes this via IsCancelRequested on its own heartbeat tick
	// (spec.md §4.5 "Cancellation... propagates a cooperative signal").
	RequestCancel(ctx context.Context, jobID string) error
	IsCancelRequested(ctx context.Context, jobID string) (bool, error)
}

// InvocationStore persists AgentInvocations (spec.md §3), one row per
// (job, agent).
type InvocationStore interface {
	Save(ctx context.Context, inv *model.AgentInvocation) error
	ListByJob(ctx context.Context, jobID string) ([]*model.AgentInvocation, error)
}

// ArtifactStore persists the job's terminal ResultArtifact.
type ArtifactStore interface {
	Save(ctx context.Context, artifact *model.ResultArtifact) error
	Get(ctx context.Context, jobID string) (*model.ResultArtifact, error)
}

// Synthesizer is the narrow surface pkg/synth exposes to the Scheduler
// (spec.md §4.7). Kept as an interface so the Scheduler never imports
// pkg/synth directly, matching the reference's "never global
// singletons" layering.
type Synthesizer interface {
	SynthesizeIngest(ctx context.Context, job *model.Job, invocations []*model.AgentInvocation) (*model.ResultArtifact, error)
	SynthesizeQuery(ctx context.Context, job *model.Job, invocations []*model.AgentInvocation) (*model.ResultArtifact, error)
}

// StatusSink is the subset of statusbus.Sink the Scheduler publishes
// lifecycle events through.
type StatusSink interface {
	PlanLoaded(jobID string)
	Validating(jobID string)
	Synthesizing(jobID string)
	Complete(jobID string)
	Failed(jobID, msg string)
	Cancelled(jobID string)
}

// JobExecutor runs one claimed Job to completion (or cancellation/
// failure), the orchestrator analogue of the reference's
// queue.SessionExecutor. *Scheduler is the production implementation.
type JobExecutor interface {
	Execute(ctx context.Context, job *model.Job) *ExecutionResult
}

// PoolHealth mirrors the reference's PoolHealth for an operational
// health endpoint.
type PoolHealth struct {
	IsHealthy        bool
	PodID            string
	ActiveWorkers    int
	TotalWorkers     int
	ActiveJobs       int
	MaxConcurrent    int
	QueueDepth       int
	WorkerStats      []WorkerHealth
	LastOrphanScan   time.Time
	OrphansRecovered int
}

// WorkerHealth mirrors the reference's WorkerHealth for a single worker.
type WorkerHealth struct {
	ID               string
	Status           string
	CurrentJobID     string
	JobsProcessed    int
	LastActivity     time.Time
}
