package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/agentrt"
	"github.com/fieldstack/orchestrator/pkg/model"
)

// AgentRuntime is the narrow surface the Scheduler needs from the Agent
// Runtime (spec.md §4.3); kept as an interface so a test can stub it
// without a live Tool Broker.
type AgentRuntime interface {
	Invoke(ctx context.Context, req agentrt.Request) *model.AgentInvocation
}

// ExecutionResult is the Scheduler's outcome for one job, the
// orchestrator analogue of the reference's queue.ExecutionResult:
// lightweight, because every intermediate AgentInvocation was already
// persisted during execution, not batched at the end.
type ExecutionResult struct {
	State       model.JobState
	FailureCode model.Code
	FailureMsg  string
}

// Scheduler executes one Job to completion per spec.md §4.5: level
// fan-out/join, cross-agent validation, synthesis, and persistence. It
// is the JobExecutor the worker pool drives.
type Scheduler struct {
	runtime     AgentRuntime
	synth       Synthesizer
	invocations InvocationStore
	artifacts   ArtifactStore
	sink        StatusSink
	cfg         Config
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runtime AgentRuntime, synth Synthesizer, invocations InvocationStore, artifacts ArtifactStore, sink StatusSink, cfg Config) *Scheduler {
	return &Scheduler{runtime: runtime, synth: synth, invocations: invocations, artifacts: artifacts, sink: sink, cfg: cfg}
}

// Execute implements JobExecutor (spec.md §4.5 "Execution" steps 1-5).
// It never returns a Go error: every outcome is reported on the
// returned ExecutionResult, mirroring Agent Runtime's own contract.
func (s *Scheduler) Execute(ctx context.Context, job *model.Job) *ExecutionResult {
	plan := job.PlanSnapshot
	s.sink.PlanLoaded(job.JobID)

	deadline := job.StartedAt.Add(s.cfg.JobTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	outputs := make(map[string]*model.AgentInvocation) // agent_id -> invocation, across all levels so far
	var allInvocations []*model.AgentInvocation

	for levelIndex, level := range plan.Levels {
		select {
		case <-ctx.Done():
			return &ExecutionResult{State: model.JobCancelled}
		default:
		}

		levelResults := s.runLevel(ctx, job, level, levelIndex, outputs, deadline)
		for _, inv := range levelResults {
			outputs[inv.AgentID] = inv
			allInvocations = append(allInvocations, inv)
			if err := s.invocations.Save(ctx, inv); err != nil {
				return &ExecutionResult{State: model.JobFailed, FailureCode: model.CodeInternal, FailureMsg: err.Error()}
			}
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return &ExecutionResult{State: model.JobCancelled}
	}

	s.sink.Validating(job.JobID)
	if err := validateConsistency(job, allInvocations); err != nil {
		code, _ := model.CodeOf(err)
		return &ExecutionResult{State: model.JobFailed, FailureCode: code, FailureMsg: err.Error()}
	}

	anyOK := false
	for _, inv := range allInvocations {
		if inv.Status == model.InvocationOK {
			anyOK = true
			break
		}
	}
	if !anyOK {
		return &ExecutionResult{
			State:       model.JobFailed,
			FailureCode: model.CodeNoViableAgents,
			FailureMsg:  "every scheduled agent finished without status=ok",
		}
	}

	s.sink.Synthesizing(job.JobID)
	artifact, err := s.synthesize(ctx, job, allInvocations)
	if err != nil {
		code, ok := model.CodeOf(err)
		if !ok {
			code = model.CodeInternal
		}
		return &ExecutionResult{State: model.JobFailed, FailureCode: code, FailureMsg: err.Error()}
	}
	if artifact == nil {
		return &ExecutionResult{
			State:       model.JobFailed,
			FailureCode: model.CodeSynthesisRefused,
			FailureMsg:  "synthesizer refused the partial agent set",
		}
	}

	artifact.JobID = job.JobID
	if err := s.artifacts.Save(ctx, artifact); err != nil {
		return &ExecutionResult{State: model.JobFailed, FailureCode: model.CodeInternal, FailureMsg: err.Error()}
	}

	return &ExecutionResult{State: model.JobSucceeded}
}

func (s *Scheduler) synthesize(ctx context.Context, job *model.Job, invocations []*model.AgentInvocation) (*model.ResultArtifact, error) {
	if job.Class == model.ClassQuery {
		return s.synth.SynthesizeQuery(ctx, job, invocations)
	}
	return s.synth.SynthesizeIngest(ctx, job, invocations)
}

// runLevel fans out every agent in level concurrently and joins before
// returning (spec.md §4.5 step 2, §5's "level barrier"). A parent whose
// invocation did not finish ok contributes a nil ParentOutput to its
// child, which must tolerate it.
func (s *Scheduler) runLevel(ctx context.Context, job *model.Job, level model.Level, levelIndex int, prior map[string]*model.AgentInvocation, deadline time.Time) []*model.AgentInvocation {
	results := make(chan *model.AgentInvocation, len(level))
	var wg sync.WaitGroup

	for _, scheduled := range level {
		scheduled := scheduled
		wg.Add(1)
		go func() {
			defer wg.Done()

			var parentOutput map[string]any
			if scheduled.ParentID != "" {
				if parent, ok := prior[scheduled.ParentID]; ok && parent.Status == model.InvocationOK {
					parentOutput = parent.Output
				}
			}

			rawInput := job.Input.Text
			if job.Class == model.ClassQuery {
				rawInput = job.Input.Question
			}

			inv := s.runtime.Invoke(ctx, agentrt.Request{
				Agent:        scheduled.Agent,
				RawInput:     rawInput,
				ParentOutput: parentOutput,
				TenantID:     job.TenantID,
				JobID:        job.JobID,
				Level:        levelIndex,
				Deadline:     deadline,
			})
			results <- inv
		}()
	}

	wg.Wait()
	close(results)

	out := make([]*model.AgentInvocation, 0, len(level))
	for inv := range results {
		out = append(out, inv)
	}
	return out
}

// validateConsistency is the cross-agent check of spec.md §4.5 step 3:
// every invocation in the job belongs to the same tenant (structural
// tenant isolation, spec.md §5), and namespacing (agent_id.key) already
// guarantees no key collisions across agents, so there is nothing left
// to reject there.
func validateConsistency(job *model.Job, invocations []*model.AgentInvocation) error {
	for _, inv := range invocations {
		if inv.JobID != job.JobID {
			return model.NewError(model.CodeCrossTenant, "invocation belongs to a different job than the one being validated")
		}
	}
	return nil
}
