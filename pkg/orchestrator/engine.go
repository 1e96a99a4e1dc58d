package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/plan"
)

// ConfigStore is the narrow surface the Engine needs from the Config
// Store (pkg/config) to resolve a Job's ExecutionPlan at submit time.
type ConfigStore interface {
	GetPlan(tenantID, domainID string, class model.Class) (*model.Plan, error)
	AgentsForTenant(tenantID string) map[string]*model.AgentDefinition
}

// JobCanceller is the subset of WorkerPool the Engine uses to propagate
// an external cancel(job_id) request to an in-flight job (spec.md §4.5).
type JobCanceller interface {
	CancelJob(jobID string) bool
}

// JobUserIndex records which user submitted a job, so the Status Bus
// can address a Publish call using only a job id (spec.md §4.6). A nil
// Engine.users is a silent no-op: status events just never deliver,
// which is harmless since GetJob always reflects durable state.
type JobUserIndex interface {
	Put(jobID, userID string)
}

type noopUserIndex struct{}

func (noopUserIndex) Put(string, string) {}

// Engine is the Scheduler's external request surface (spec.md §6):
// SubmitIngest, SubmitQuery, GetJob, Cancel. It resolves and embeds an
// ExecutionPlan at submit time so later Config Store edits never affect
// a job already in flight.
type Engine struct {
	configStore ConfigStore
	jobs        JobStore
	canceller   JobCanceller
	users       JobUserIndex
}

// NewEngine constructs an Engine.
func NewEngine(configStore ConfigStore, jobs JobStore, canceller JobCanceller) *Engine {
	return &Engine{configStore: configStore, jobs: jobs, canceller: canceller, users: noopUserIndex{}}
}

// SetJobUserIndex wires the Status Bus's job-to-user index. Call this
// once at startup; it is not safe to change after traffic starts.
func (e *Engine) SetJobUserIndex(users JobUserIndex) {
	e.users = users
}

// Accepted is the {job_id, accepted_at} pair spec.md §6 returns from
// both submit operations.
type Accepted struct {
	JobID      string
	AcceptedAt time.Time
}

func (e *Engine) resolvePlan(tenantID, domainID string, class model.Class) (*model.ExecutionPlan, error) {
	rawPlan, err := e.configStore.GetPlan(tenantID, domainID, class)
	if err != nil {
		return nil, err
	}
	agents := e.configStore.AgentsForTenant(tenantID)
	return plan.Build(rawPlan, agents)
}

func (e *Engine) submit(ctx context.Context, tenantID, userID, domainID string, class model.Class, input model.JobInput) (*Accepted, error) {
	if !class.IsValid() {
		return nil, model.NewError(model.CodeClassMismatch, "unknown job class")
	}

	executionPlan, err := e.resolvePlan(tenantID, domainID, class)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &model.Job{
		JobID:        uuid.NewString(),
		TenantID:     tenantID,
		UserID:       userID,
		Class:        class,
		DomainID:     domainID,
		Input:        input,
		PlanSnapshot: executionPlan,
		State:        model.JobQueued,
		StartedAt:    now,
	}

	if err := e.jobs.Insert(ctx, job); err != nil {
		return nil, err
	}
	e.users.Put(job.JobID, userID)

	return &Accepted{JobID: job.JobID, AcceptedAt: now}, nil
}

// SubmitIngest implements spec.md §6's SubmitIngest operation.
func (e *Engine) SubmitIngest(ctx context.Context, tenantID, userID, domainID, text string, attachments []string) (*Accepted, error) {
	return e.submit(ctx, tenantID, userID, domainID, model.ClassIngest, model.JobInput{
		Text:        text,
		Attachments: attachments,
	})
}

// SubmitQuery implements spec.md §6's SubmitQuery operation.
func (e *Engine) SubmitQuery(ctx context.Context, tenantID, userID, domainID, question string, filters map[string]string) (*Accepted, error) {
	return e.submit(ctx, tenantID, userID, domainID, model.ClassQuery, model.JobInput{
		Question: question,
		Filters:  filters,
	})
}

// GetJob implements spec.md §6's GetJob operation. It refuses to return
// a job belonging to a different tenant than tenantID (spec.md §8
// "Tenant isolation").
func (e *Engine) GetJob(ctx context.Context, tenantID, jobID string) (*model.Job, error) {
	job, err := e.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel implements spec.md §6's Cancel operation. It is idempotent:
// cancelling an already-terminal job is a no-op success, and cancelling
// a job claimed by a different pod than the one handling this request
// still transitions the Job record so the owning pod observes it on its
// next suspension point.
func (e *Engine) Cancel(ctx context.Context, tenantID, jobID string) error {
	job, err := e.jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if job.State.IsTerminal() {
		return nil
	}

	if job.State == model.JobQueued {
		return e.jobs.UpdateState(ctx, jobID, model.JobCancelled, model.CodeCancelled, "cancelled before a worker claimed it")
	}

	// Running: try the fast same-pod path first, then fall back to the
	// durable flag a cross-pod owner's heartbeat will observe.
	if e.canceller.CancelJob(jobID) {
		return nil
	}
	return e.jobs.RequestCancel(ctx, jobID)
}
