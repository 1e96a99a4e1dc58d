package statusbus

import (
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// JobUsers resolves the user_id that owns a job, so the Sink can
// address Publish calls that only carry tenant/job/agent identifiers.
type JobUsers interface {
	UserForJob(jobID string) (string, bool)
}

// Sink adapts a Bus to the narrow EventSink interfaces pkg/tool and
// pkg/agentrt depend on, plus the Scheduler's own lifecycle events
// (spec.md §4.6: "Created by Runtime, Scheduler, Tool Broker").
type Sink struct {
	bus   *Bus
	users JobUsers
}

// NewSink constructs a Sink over bus, resolving user ids via users.
func NewSink(bus *Bus, users JobUsers) *Sink {
	return &Sink{bus: bus, users: users}
}

func (s *Sink) publish(jobID, agentID, toolName string, kind model.EventKind, message string) {
	userID, ok := s.users.UserForJob(jobID)
	if !ok {
		return
	}
	s.bus.Publish(model.StatusEvent{
		JobID:    jobID,
		UserID:   userID,
		Kind:     kind,
		AgentID:  agentID,
		ToolName: toolName,
		Message:  message,
	})
}

// --- tool.EventSink ---

func (s *Sink) ToolInvoked(_, jobID, agentID string, toolName model.ToolName) {
	s.publish(jobID, agentID, string(toolName), model.EventToolInvoked, fmt.Sprintf("invoking %s", toolName))
}

func (s *Sink) ToolDone(_, jobID, agentID string, toolName model.ToolName) {
	s.publish(jobID, agentID, string(toolName), model.EventToolDone, fmt.Sprintf("%s completed", toolName))
}

func (s *Sink) ToolFailed(_, jobID, agentID string, toolName model.ToolName, err error) {
	s.publish(jobID, agentID, string(toolName), model.EventToolFailed, err.Error())
}

// --- agentrt.EventSink ---

func (s *Sink) AgentStarted(_, jobID, agentID string) {
	s.publish(jobID, agentID, "", model.EventAgentStarted, fmt.Sprintf("agent %s started", agentID))
}

func (s *Sink) AgentOK(_, jobID, agentID string) {
	s.publish(jobID, agentID, "", model.EventAgentOK, fmt.Sprintf("agent %s completed", agentID))
}

func (s *Sink) AgentError(_, jobID, agentID string, code model.Code, msg string) {
	s.publish(jobID, agentID, "", model.EventAgentError, fmt.Sprintf("agent %s failed (%s): %s", agentID, code, msg))
}

func (s *Sink) AgentTimeout(_, jobID, agentID string) {
	s.publish(jobID, agentID, "", model.EventAgentTimeout, fmt.Sprintf("agent %s timed out", agentID))
}

// --- scheduler lifecycle events ---

func (s *Sink) PlanLoaded(jobID string) {
	s.publish(jobID, "", "", model.EventPlanLoaded, "execution plan loaded")
}

func (s *Sink) Validating(jobID string) {
	s.publish(jobID, "", "", model.EventValidating, "validating agent outputs")
}

func (s *Sink) Synthesizing(jobID string) {
	s.publish(jobID, "", "", model.EventSynthesizing, "synthesizing result")
}

func (s *Sink) Complete(jobID string) {
	s.publish(jobID, "", "", model.EventComplete, "job complete")
}

func (s *Sink) Failed(jobID, msg string) {
	s.publish(jobID, "", "", model.EventFailed, msg)
}

func (s *Sink) Cancelled(jobID string) {
	s.publish(jobID, "", "", model.EventCancelled, "job cancelled")
}
