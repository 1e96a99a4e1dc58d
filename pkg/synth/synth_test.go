package synth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

type stubBroker struct {
	text string
	err  error
}

func (b *stubBroker) Invoke(context.Context, model.ToolName, map[string]any, tool.Invocation) (map[string]any, error) {
	if b.err != nil {
		return nil, b.err
	}
	return map[string]any{"text": b.text}, nil
}

func ingestJob() *model.Job {
	return &model.Job{JobID: "job-1", TenantID: "t1", Class: model.ClassIngest}
}

func TestSynthesizeIngestNamespacesOutputKeys(t *testing.T) {
	s := New(&stubBroker{})
	invocations := []*model.AgentInvocation{
		{AgentID: "a1", Status: model.InvocationOK, Output: map[string]any{"severity": "high"}},
		{AgentID: "a2", Status: model.InvocationOK, Output: map[string]any{"count": 3}},
	}

	artifact, err := s.SynthesizeIngest(context.Background(), ingestJob(), invocations)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "high", artifact.Fields["a1.severity"])
	assert.Equal(t, 3, artifact.Fields["a2.count"])
}

func TestSynthesizeIngestRefusesWhenEveryOKAgentOutputIsEmpty(t *testing.T) {
	s := New(&stubBroker{})
	invocations := []*model.AgentInvocation{
		{AgentID: "a1", Status: model.InvocationOK, Output: map[string]any{}},
	}

	artifact, err := s.SynthesizeIngest(context.Background(), ingestJob(), invocations)
	require.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestSynthesizeIngestResolvesConflictByConfidenceThenAgentID(t *testing.T) {
	s := New(&stubBroker{})
	invocations := []*model.AgentInvocation{
		{AgentID: "b-agent", Status: model.InvocationOK, Output: map[string]any{"category": "flood", "confidence": 0.4}},
		{AgentID: "a-agent", Status: model.InvocationOK, Output: map[string]any{"category": "fire", "confidence": 0.9}},
	}

	artifact, err := s.SynthesizeIngest(context.Background(), ingestJob(), invocations)
	require.NoError(t, err)
	assert.Equal(t, "fire", artifact.Category, "higher-confidence agent wins regardless of agent id")
}

func TestSynthesizeIngestResolvesConflictByAgentIDWhenNoConfidence(t *testing.T) {
	s := New(&stubBroker{})
	invocations := []*model.AgentInvocation{
		{AgentID: "z-agent", Status: model.InvocationOK, Output: map[string]any{"category": "flood"}},
		{AgentID: "a-agent", Status: model.InvocationOK, Output: map[string]any{"category": "fire"}},
	}

	artifact, err := s.SynthesizeIngest(context.Background(), ingestJob(), invocations)
	require.NoError(t, err)
	assert.Equal(t, "fire", artifact.Category, "lexicographically first agent id wins the tie-break")
}

func queryPlan() *model.ExecutionPlan {
	where := &model.AgentDefinition{AgentID: "where-agent", Interrogative: model.Where}
	what := &model.AgentDefinition{AgentID: "what-agent", Interrogative: model.What}
	return &model.ExecutionPlan{
		Class: model.ClassQuery,
		Levels: []model.Level{
			{
				{AgentID: "what-agent", Agent: what},
				{AgentID: "where-agent", Agent: where},
			},
		},
	}
}

func TestSynthesizeQueryOrdersBulletsCanonically(t *testing.T) {
	s := New(&stubBroker{text: "short summary"})
	job := &model.Job{JobID: "job-1", TenantID: "t1", Class: model.ClassQuery, PlanSnapshot: queryPlan(), Input: model.JobInput{Question: "what happened?"}}

	invocations := []*model.AgentInvocation{
		{AgentID: "where-agent", Status: model.InvocationOK, Output: map[string]any{"insight": "near the river"}},
		{AgentID: "what-agent", Status: model.InvocationOK, Output: map[string]any{"insight": "a flood"}},
	}

	artifact, err := s.SynthesizeQuery(context.Background(), job, invocations)
	require.NoError(t, err)
	require.Len(t, artifact.Bullets, 2)
	assert.Equal(t, model.What, artifact.Bullets[0].Interrogative)
	assert.Equal(t, model.Where, artifact.Bullets[1].Interrogative)
	assert.Equal(t, "short summary", artifact.Summary)
}

func TestSynthesizeQueryMarksFailedAgentAsNoData(t *testing.T) {
	s := New(&stubBroker{text: "summary"})
	job := &model.Job{JobID: "job-1", TenantID: "t1", Class: model.ClassQuery, PlanSnapshot: queryPlan(), Input: model.JobInput{Question: "q"}}

	invocations := []*model.AgentInvocation{
		{AgentID: "what-agent", Status: model.InvocationOK, Output: map[string]any{"insight": "a flood"}},
		{AgentID: "where-agent", Status: model.InvocationError, ErrorCode: model.CodeToolFailed},
	}

	artifact, err := s.SynthesizeQuery(context.Background(), job, invocations)
	require.NoError(t, err)
	require.Len(t, artifact.Bullets, 2)
	assert.Equal(t, "no data", artifact.Bullets[1].Text)
}

func TestSynthesizeQueryFailsOpenWhenSummaryCallErrors(t *testing.T) {
	s := New(&stubBroker{err: assertErr{}})
	job := &model.Job{JobID: "job-1", TenantID: "t1", Class: model.ClassQuery, PlanSnapshot: queryPlan(), Input: model.JobInput{Question: "q"}}

	invocations := []*model.AgentInvocation{
		{AgentID: "what-agent", Status: model.InvocationOK, Output: map[string]any{"insight": "a flood"}},
	}

	artifact, err := s.SynthesizeQuery(context.Background(), job, invocations)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Empty(t, artifact.Summary)
	assert.Len(t, artifact.Bullets, 1)
}

func TestSynthesizeQueryRefusesWhenNoAgentIsAQueryAgent(t *testing.T) {
	s := New(&stubBroker{text: "summary"})
	plan := &model.ExecutionPlan{Class: model.ClassQuery, Levels: []model.Level{{{AgentID: "x", Agent: &model.AgentDefinition{AgentID: "x"}}}}}
	job := &model.Job{JobID: "job-1", TenantID: "t1", Class: model.ClassQuery, PlanSnapshot: plan}

	artifact, err := s.SynthesizeQuery(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestBuildVisualizationComputesBoundsFromLocations(t *testing.T) {
	invocations := []*model.AgentInvocation{
		{AgentID: "a1", Status: model.InvocationOK, Output: map[string]any{"location": map[string]any{"lat": 1.0, "lon": 2.0}}},
		{AgentID: "a2", Status: model.InvocationOK, Output: map[string]any{"location": map[string]any{"lat": 5.0, "lon": -3.0}}},
	}

	spec := buildVisualization(invocations)
	require.NotNil(t, spec)
	assert.Equal(t, [4]float64{-3.0, 1.0, 2.0, 5.0}, spec.Bounds)
	assert.Len(t, spec.Features, 2)
}

func TestBuildVisualizationReturnsNilWhenNoLocationPresent(t *testing.T) {
	invocations := []*model.AgentInvocation{
		{AgentID: "a1", Status: model.InvocationOK, Output: map[string]any{"severity": "high"}},
	}
	assert.Nil(t, buildVisualization(invocations))
}

type assertErr struct{}

func (assertErr) Error() string { return "broker unavailable" }
