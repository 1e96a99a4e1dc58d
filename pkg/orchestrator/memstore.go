package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// MemoryJobStore is an in-process JobStore. It backs tests and
// standalone wiring until a tenant deploys pkg/store/postgres.
type MemoryJobStore struct {
	mu              sync.Mutex
	jobs            map[string]*model.Job
	heartbeat       map[string]time.Time
	cancelRequested map[string]bool
}

// NewMemoryJobStore constructs an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:            make(map[string]*model.Job),
		heartbeat:       make(map[string]time.Time),
		cancelRequested: make(map[string]bool),
	}
}

func (s *MemoryJobStore) Insert(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, tenantID, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return nil, model.NewError(model.CodeBadReference, "job not found")
	}
	cp := *job
	return &cp, nil
}

// ClaimNext claims the oldest queued job, FIFO by StartedAt/insertion
// order — the in-memory analogue of the reference's `SELECT ... FOR
// UPDATE SKIP LOCKED ORDER BY created_at`.
func (s *MemoryJobStore) ClaimNext(_ context.Context, podID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*model.Job
	for _, job := range s.jobs {
		if job.State == model.JobQueued {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoJobsAvailable
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StartedAt.Before(candidates[j].StartedAt)
	})

	claimed := candidates[0]
	claimed.State = model.JobRunning
	claimed.PodID = podID
	claimed.StartedAt = time.Now()
	s.heartbeat[claimed.JobID] = claimed.StartedAt

	cp := *claimed
	return &cp, nil
}

func (s *MemoryJobStore) UpdateState(_ context.Context, jobID string, state model.JobState, failureCode model.Code, failureMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return model.NewError(model.CodeBadReference, "job not found")
	}
	job.State = state
	job.FailureCode = failureCode
	job.FailureMsg = failureMsg
	if state.IsTerminal() {
		job.FinishedAt = time.Now()
		delete(s.heartbeat, jobID)
		delete(s.cancelRequested, jobID)
	}
	return nil
}

func (s *MemoryJobStore) Heartbeat(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return model.NewError(model.CodeBadReference, "job not found")
	}
	s.heartbeat[jobID] = time.Now()
	return nil
}

func (s *MemoryJobStore) CountRunning(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.State == model.JobRunning {
			n++
		}
	}
	return n, nil
}

func (s *MemoryJobStore) FindStaleRunning(_ context.Context, threshold time.Time) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*model.Job
	for id, job := range s.jobs {
		if job.State != model.JobRunning {
			continue
		}
		if last, ok := s.heartbeat[id]; !ok || last.Before(threshold) {
			cp := *job
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

func (s *MemoryJobStore) FindRunningOnPod(_ context.Context, podID string) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var onPod []*model.Job
	for _, job := range s.jobs {
		if job.State == model.JobRunning && job.PodID == podID {
			cp := *job
			onPod = append(onPod, &cp)
		}
	}
	return onPod, nil
}

func (s *MemoryJobStore) RequestCancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return model.NewError(model.CodeBadReference, "job not found")
	}
	s.cancelRequested[jobID] = true
	return nil
}

func (s *MemoryJobStore) IsCancelRequested(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested[jobID], nil
}

// MemoryInvocationStore is an in-process InvocationStore.
type MemoryInvocationStore struct {
	mu   sync.Mutex
	byJob map[string][]*model.AgentInvocation
}

func NewMemoryInvocationStore() *MemoryInvocationStore {
	return &MemoryInvocationStore{byJob: make(map[string][]*model.AgentInvocation)}
}

func (s *MemoryInvocationStore) Save(_ context.Context, inv *model.AgentInvocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.byJob[inv.JobID] = append(s.byJob[inv.JobID], &cp)
	return nil
}

func (s *MemoryInvocationStore) ListByJob(_ context.Context, jobID string) ([]*model.AgentInvocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.AgentInvocation(nil), s.byJob[jobID]...), nil
}

// MemoryArtifactStore is an in-process ArtifactStore.
type MemoryArtifactStore struct {
	mu   sync.Mutex
	byJob map[string]*model.ResultArtifact
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{byJob: make(map[string]*model.ResultArtifact)}
}

func (s *MemoryArtifactStore) Save(_ context.Context, artifact *model.ResultArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *artifact
	s.byJob[artifact.JobID] = &cp
	return nil
}

func (s *MemoryArtifactStore) Get(_ context.Context, jobID string) (*model.ResultArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, ok := s.byJob[jobID]
	if !ok {
		return nil, model.NewError(model.CodeBadReference, "artifact not found")
	}
	cp := *artifact
	return &cp, nil
}
