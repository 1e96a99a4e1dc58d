// Package agentrt implements the Agent Runtime: execution of a single
// agent invocation (prompt construction, LLM completion via the Tool
// Broker, tool-call surface, output parsing and schema validation,
// lifecycle events), mirroring the reference's BaseAgent/Controller
// split but collapsed to the contract spec.md §4.3 actually needs: one
// invocation in, one AgentInvocation out, no iteration loop.
package agentrt

import (
	"context"
	"errors"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

// Broker is the narrow surface the runtime needs from the Tool Broker.
// Agents never hold a wider reference (spec.md §4.3 "Direct I/O from
// an agent is disallowed").
type Broker interface {
	Invoke(ctx context.Context, toolName model.ToolName, params map[string]any, inv tool.Invocation) (map[string]any, error)
}

// EventSink receives the runtime's lifecycle events (spec.md §4.3
// steps 1 and 7).
type EventSink interface {
	AgentStarted(tenantID, jobID, agentID string)
	AgentOK(tenantID, jobID, agentID string)
	AgentError(tenantID, jobID, agentID string, code model.Code, msg string)
	AgentTimeout(tenantID, jobID, agentID string)
}

// Request is the input to a single invocation (spec.md §4.3).
type Request struct {
	Agent        *model.AgentDefinition
	RawInput     string
	ParentOutput map[string]any // present iff the dependency parent finished with status=ok
	TenantID     string
	JobID        string
	Level        int
	Deadline     time.Time
}

// Runtime executes Request values against a Broker.
type Runtime struct {
	broker Broker
	events EventSink
}

// New constructs a Runtime.
func New(broker Broker, events EventSink) *Runtime {
	return &Runtime{broker: broker, events: events}
}

// Invoke runs one agent to completion or failure. It never returns a
// Go error: every outcome, including a timeout or malformed output, is
// reported on the returned AgentInvocation so a single agent's failure
// never aborts the job (spec.md §4.3 "Failure semantics").
func (r *Runtime) Invoke(ctx context.Context, req Request) *model.AgentInvocation {
	inv := &model.AgentInvocation{
		JobID:     req.JobID,
		AgentID:   req.Agent.AgentID,
		Level:     req.Level,
		Status:    model.InvocationRunning,
		StartedAt: time.Now(),
	}

	r.events.AgentStarted(req.TenantID, req.JobID, req.Agent.AgentID)

	ctx, cancel := context.WithDeadline(ctx, req.Deadline)
	defer cancel()

	prompt := buildPrompt(req.Agent, req.RawInput, req.ParentOutput)
	inv.InputView = prompt

	output, err := r.complete(ctx, req, prompt)
	if err != nil {
		r.fail(inv, req, err)
		return inv
	}

	if err := validateOutput(req.Agent, output); err != nil {
		r.fail(inv, req, err)
		return inv
	}

	inv.Output = output
	inv.Status = model.InvocationOK
	inv.FinishedAt = time.Now()
	r.events.AgentOK(req.TenantID, req.JobID, req.Agent.AgentID)
	return inv
}

// complete calls the llm tool and parses its response as a JSON
// object, permitting exactly one repair-prompt retry on a parse
// failure (spec.md §4.3 steps 3 and 5). Retrying the LLM call itself
// on transient failure is the Tool Broker's job — the llm adapter is
// registered as idempotent.
func (r *Runtime) complete(ctx context.Context, req Request, prompt string) (map[string]any, error) {
	inv := tool.Invocation{TenantID: req.TenantID, AgentID: req.Agent.AgentID, JobID: req.JobID}
	allowedTools := make([]string, len(req.Agent.AllowedTools))
	for i, t := range req.Agent.AllowedTools {
		allowedTools[i] = string(t)
	}

	resp, err := r.broker.Invoke(ctx, model.ToolLLM, map[string]any{
		"prompt":        prompt,
		"allowed_tools": allowedTools,
	}, inv)
	if err != nil {
		return nil, err
	}

	text, _ := resp["text"].(string)
	output, parseErr := parseOutput(text)
	if parseErr == nil {
		return output, nil
	}

	resp, err = r.broker.Invoke(ctx, model.ToolLLM, map[string]any{
		"prompt":        repairPrompt(prompt),
		"allowed_tools": allowedTools,
	}, inv)
	if err != nil {
		return nil, err
	}

	text, _ = resp["text"].(string)
	output, parseErr = parseOutput(text)
	if parseErr != nil {
		return nil, model.Wrap(model.CodeParseError, "agent output did not parse as JSON after repair retry", parseErr)
	}
	return output, nil
}

// fail classifies err (timeout vs. everything else) and records it on
// inv, matching the reference's errors.Is(ctx.Err())-based
// classification in BaseAgent.Execute.
func (r *Runtime) fail(inv *model.AgentInvocation, req Request, err error) {
	inv.FinishedAt = time.Now()

	if errors.Is(err, context.DeadlineExceeded) {
		inv.Status = model.InvocationTimeout
		inv.ErrorCode = model.CodeAgentTimeout
		inv.ErrorMsg = err.Error()
		r.events.AgentTimeout(req.TenantID, req.JobID, req.Agent.AgentID)
		return
	}

	code, ok := model.CodeOf(err)
	if !ok {
		code = model.CodeInternal
	}

	inv.Status = model.InvocationError
	inv.ErrorCode = code
	inv.ErrorMsg = err.Error()
	r.events.AgentError(req.TenantID, req.JobID, req.Agent.AgentID, code, err.Error())
}
