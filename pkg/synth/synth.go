// Package synth implements the Result Synthesizer & Response Formatter:
// the namespaced ingest merge, the ordered query bullet list, and the
// dedicated "summary" LLM call, adapted from the reference's
// agent/controller.SynthesisController (a tool-less single LLM call)
// and queue.executeSynthesisStage/generateExecutiveSummary. Unlike the
// reference, this Synthesizer never holds a direct LLM client — the
// summary call goes through the Tool Broker like any other agent tool
// invocation (pkg/orchestrator.Synthesizer's "never global singletons"
// boundary).
package synth

import (
	"context"
	"log/slog"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

// Broker is the narrow surface Synthesizer needs from the Tool Broker.
type Broker interface {
	Invoke(ctx context.Context, toolName model.ToolName, params map[string]any, inv tool.Invocation) (map[string]any, error)
}

// synthesizerInvocationID names the pseudo-agent that owns the summary
// LLM call for permission/logging purposes; it is not a real
// AgentDefinition.
const synthesizerInvocationID = "synthesizer"

// Synthesizer implements pkg/orchestrator.Synthesizer.
type Synthesizer struct {
	broker Broker
}

// New constructs a Synthesizer.
func New(broker Broker) *Synthesizer {
	return &Synthesizer{broker: broker}
}

func okInvocations(invocations []*model.AgentInvocation) []*model.AgentInvocation {
	out := make([]*model.AgentInvocation, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Status == model.InvocationOK {
			out = append(out, inv)
		}
	}
	return out
}

// SynthesizeIngest merges namespaced agent outputs into one artifact
// (spec.md §4.7). Returns (nil, nil) — a refusal, not an error — if
// every successful agent produced an empty output map, since an empty
// artifact carries nothing worth persisting.
func (s *Synthesizer) SynthesizeIngest(_ context.Context, job *model.Job, invocations []*model.AgentInvocation) (*model.ResultArtifact, error) {
	ok := okInvocations(invocations)

	artifact := &model.ResultArtifact{
		JobID:         job.JobID,
		Fields:        map[string]any{},
		AgentStatuses: statusesByAgent(invocations),
	}

	for _, inv := range ok {
		for k, v := range inv.Output {
			artifact.Fields[inv.AgentID+"."+k] = v
		}
	}
	if len(artifact.Fields) == 0 {
		return nil, nil
	}

	promoteSemanticFields(artifact, ok)
	return artifact, nil
}

// SynthesizeQuery formats one ordered bullet per query agent plus a
// dedicated summary LLM call (spec.md §4.7).
func (s *Synthesizer) SynthesizeQuery(ctx context.Context, job *model.Job, invocations []*model.AgentInvocation) (*model.ResultArtifact, error) {
	byAgent := make(map[string]*model.AgentInvocation, len(invocations))
	for _, inv := range invocations {
		byAgent[inv.AgentID] = inv
	}

	bullets := buildBullets(job.PlanSnapshot, byAgent)
	if len(bullets) == 0 {
		return nil, nil
	}

	artifact := &model.ResultArtifact{
		JobID:         job.JobID,
		Bullets:       bullets,
		AgentStatuses: statusesByAgent(invocations),
		Visualization: buildVisualization(okInvocations(invocations)),
	}

	summary, err := s.summarize(ctx, job, bullets)
	if err != nil {
		slog.Warn("summary LLM call failed, returning bullets without a summary", "job_id", job.JobID, "error", err)
	} else {
		artifact.Summary = summary
	}

	return artifact, nil
}

func (s *Synthesizer) summarize(ctx context.Context, job *model.Job, bullets []model.Bullet) (string, error) {
	prompt := buildSummaryPrompt(job.Input.Question, bullets)
	resp, err := s.broker.Invoke(ctx, model.ToolLLM, map[string]any{
		"prompt":        prompt,
		"allowed_tools": []string{},
	}, tool.Invocation{TenantID: job.TenantID, AgentID: synthesizerInvocationID, JobID: job.JobID})
	if err != nil {
		return "", err
	}
	text, _ := resp["text"].(string)
	if text == "" {
		return "", model.NewError(model.CodeInternal, "summary LLM call returned empty text")
	}
	return text, nil
}

func statusesByAgent(invocations []*model.AgentInvocation) map[string]model.InvocationStatus {
	out := make(map[string]model.InvocationStatus, len(invocations))
	for _, inv := range invocations {
		out[inv.AgentID] = inv.Status
	}
	return out
}
