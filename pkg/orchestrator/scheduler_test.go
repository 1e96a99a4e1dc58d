package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/agentrt"
	"github.com/fieldstack/orchestrator/pkg/model"
)

type stubRuntime struct {
	byAgent map[string]model.InvocationStatus // agent_id -> outcome
}

func (r *stubRuntime) Invoke(_ context.Context, req agentrt.Request) *model.AgentInvocation {
	status := r.byAgent[req.Agent.AgentID]
	if status == "" {
		status = model.InvocationOK
	}
	inv := &model.AgentInvocation{
		JobID:   req.JobID,
		AgentID: req.Agent.AgentID,
		Level:   req.Level,
		Status:  status,
	}
	if status == model.InvocationOK {
		inv.Output = map[string]any{"parent_seen": req.ParentOutput != nil}
	} else {
		inv.ErrorCode = model.CodeToolFailed
		inv.ErrorMsg = "stub failure"
	}
	return inv
}

type stubSynth struct {
	ingest *model.ResultArtifact
	query  *model.ResultArtifact
	err    error
}

func (s *stubSynth) SynthesizeIngest(_ context.Context, job *model.Job, _ []*model.AgentInvocation) (*model.ResultArtifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.ingest != nil {
		return s.ingest, nil
	}
	return &model.ResultArtifact{JobID: job.JobID, Fields: map[string]any{"a.category": "fire"}}, nil
}

func (s *stubSynth) SynthesizeQuery(_ context.Context, job *model.Job, _ []*model.AgentInvocation) (*model.ResultArtifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.ResultArtifact{JobID: job.JobID, Summary: "ok"}, nil
}

type stubSink struct {
	events []string
}

func (s *stubSink) PlanLoaded(string)    { s.events = append(s.events, "plan_loaded") }
func (s *stubSink) Validating(string)    { s.events = append(s.events, "validating") }
func (s *stubSink) Synthesizing(string)  { s.events = append(s.events, "synthesizing") }
func (s *stubSink) Complete(string)      { s.events = append(s.events, "complete") }
func (s *stubSink) Failed(string, string) { s.events = append(s.events, "failed") }
func (s *stubSink) Cancelled(string)     { s.events = append(s.events, "cancelled") }

func twoLevelPlan() *model.ExecutionPlan {
	parent := &model.AgentDefinition{AgentID: "a1", Class: model.ClassIngest}
	child := &model.AgentDefinition{AgentID: "a2", Class: model.ClassIngest}
	return &model.ExecutionPlan{
		Class: model.ClassIngest,
		Levels: []model.Level{
			{{AgentID: "a1", Agent: parent}},
			{{AgentID: "a2", ParentID: "a1", Agent: child}},
		},
	}
}

func testJob(plan *model.ExecutionPlan) *model.Job {
	return &model.Job{
		JobID:        "job-1",
		TenantID:     "t1",
		Class:        plan.Class,
		Input:        model.JobInput{Text: "a building is on fire"},
		PlanSnapshot: plan,
		State:        model.JobRunning,
		StartedAt:    time.Now(),
	}
}

func newTestScheduler(runtime AgentRuntime, synth Synthesizer, sink StatusSink) (*Scheduler, InvocationStore, ArtifactStore) {
	invocations := NewMemoryInvocationStore()
	artifacts := NewMemoryArtifactStore()
	cfg := DefaultConfig()
	return NewScheduler(runtime, synth, invocations, artifacts, sink, cfg), invocations, artifacts
}

func TestExecuteSucceedsAndPersistsArtifact(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{}}
	sink := &stubSink{}
	sched, invocations, artifacts := newTestScheduler(runtime, &stubSynth{}, sink)

	job := testJob(twoLevelPlan())
	result := sched.Execute(context.Background(), job)

	require.Equal(t, model.JobSucceeded, result.State)

	saved, err := invocations.ListByJob(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	artifact, err := artifacts.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "fire", artifact.Fields["a.category"])

	assert.Contains(t, sink.events, "plan_loaded")
	assert.Contains(t, sink.events, "validating")
	assert.Contains(t, sink.events, "synthesizing")
}

func TestExecutePassesOKParentOutputToChild(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{}}
	sched, invocations, _ := newTestScheduler(runtime, &stubSynth{}, &stubSink{})

	job := testJob(twoLevelPlan())
	result := sched.Execute(context.Background(), job)
	require.Equal(t, model.JobSucceeded, result.State)

	saved, _ := invocations.ListByJob(context.Background(), job.JobID)
	byAgent := map[string]*model.AgentInvocation{}
	for _, inv := range saved {
		byAgent[inv.AgentID] = inv
	}
	assert.Equal(t, false, byAgent["a1"].Output["parent_seen"])
	assert.Equal(t, true, byAgent["a2"].Output["parent_seen"])
}

func TestExecuteSchedulesChildWithNilParentOutputWhenParentFails(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{"a1": model.InvocationError}}
	sched, invocations, artifacts := newTestScheduler(runtime, &stubSynth{}, &stubSink{})

	job := testJob(twoLevelPlan())
	result := sched.Execute(context.Background(), job)

	// a2 still ran and succeeded, so the job succeeds despite a1 failing.
	require.Equal(t, model.JobSucceeded, result.State)

	saved, _ := invocations.ListByJob(context.Background(), job.JobID)
	byAgent := map[string]*model.AgentInvocation{}
	for _, inv := range saved {
		byAgent[inv.AgentID] = inv
	}
	require.Equal(t, model.InvocationError, byAgent["a1"].Status)
	require.Equal(t, model.InvocationOK, byAgent["a2"].Status)
	assert.Equal(t, false, byAgent["a2"].Output["parent_seen"])

	_, err := artifacts.Get(context.Background(), job.JobID)
	require.NoError(t, err)
}

func TestExecuteFailsWithNoViableAgentsWhenEveryAgentFails(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{"a1": model.InvocationError, "a2": model.InvocationError}}
	sched, _, _ := newTestScheduler(runtime, &stubSynth{}, &stubSink{})

	job := testJob(twoLevelPlan())
	result := sched.Execute(context.Background(), job)

	require.Equal(t, model.JobFailed, result.State)
	assert.Equal(t, model.CodeNoViableAgents, result.FailureCode)
}

func TestExecuteFailsWithSynthesisRefusedWhenSynthesizerReturnsNil(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{}}
	sched, _, _ := newTestScheduler(runtime, &stubSynth{ingest: nil}, &stubSink{})

	// Force SynthesizeIngest to return (nil, nil) by wrapping stubSynth.
	sched.synth = refusingSynth{}

	job := testJob(twoLevelPlan())
	result := sched.Execute(context.Background(), job)

	require.Equal(t, model.JobFailed, result.State)
	assert.Equal(t, model.CodeSynthesisRefused, result.FailureCode)
}

type refusingSynth struct{}

func (refusingSynth) SynthesizeIngest(context.Context, *model.Job, []*model.AgentInvocation) (*model.ResultArtifact, error) {
	return nil, nil
}
func (refusingSynth) SynthesizeQuery(context.Context, *model.Job, []*model.AgentInvocation) (*model.ResultArtifact, error) {
	return nil, nil
}

func TestExecuteReturnsCancelledWhenContextAlreadyDone(t *testing.T) {
	runtime := &stubRuntime{byAgent: map[string]model.InvocationStatus{}}
	sched, _, _ := newTestScheduler(runtime, &stubSynth{}, &stubSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := testJob(twoLevelPlan())
	result := sched.Execute(ctx, job)

	require.Equal(t, model.JobCancelled, result.State)
}
