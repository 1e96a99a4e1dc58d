package model

import "time"

// JobState is the Job state machine (spec.md §4.5). Transitions are
// monotonic; terminal states are sticky.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether s is one of the sticky terminal states.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobInput is the raw request payload: an ingest report (Text +
// Attachments) or a query (Question + Filters). Exactly one of the two
// input shapes is populated, selected by Class.
type JobInput struct {
	// Ingest fields.
	Text        string
	Attachments []string // opaque attachment URIs; bytes never cross the core

	// Query fields.
	Question string
	Filters  map[string]string
}

// Job is spec.md §3's Job entity.
type Job struct {
	JobID        string
	TenantID     string
	UserID       string
	Class        Class
	DomainID     string
	Input        JobInput
	PlanSnapshot *ExecutionPlan // immutable once the job starts
	State        JobState
	PodID        string // worker that claimed this job, for orphan recovery
	StartedAt    time.Time
	FinishedAt   time.Time
	FailureCode  Code
	FailureMsg   string
}

// InvocationStatus is the per-agent terminal/transient status
// (spec.md §3's AgentInvocation.status).
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationOK        InvocationStatus = "ok"
	InvocationError     InvocationStatus = "error"
	InvocationTimeout   InvocationStatus = "timeout"
	InvocationCancelled InvocationStatus = "cancelled"
)

// IsTerminal reports whether s ends the agent's participation in the job.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case InvocationOK, InvocationError, InvocationTimeout, InvocationCancelled:
		return true
	}
	return false
}

// AgentInvocation is spec.md §3's AgentInvocation entity — one row per
// (job, agent).
type AgentInvocation struct {
	JobID      string
	AgentID    string
	Level      int
	InputView  string // the rendered prompt/input the agent actually saw
	Output     map[string]any
	Status     InvocationStatus
	ErrorCode  Code
	ErrorMsg   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// EventKind is the closed set of status event kinds (spec.md §4.6).
type EventKind string

const (
	EventPlanLoaded  EventKind = "plan_loaded"
	EventAgentStarted EventKind = "agent_started"
	EventToolInvoked EventKind = "tool_invoked"
	EventToolDone    EventKind = "tool_done"
	EventToolFailed  EventKind = "tool_failed"
	EventAgentOK     EventKind = "agent_ok"
	EventAgentError  EventKind = "agent_error"
	EventAgentTimeout EventKind = "agent_timeout"
	EventValidating  EventKind = "validating"
	EventSynthesizing EventKind = "synthesizing"
	EventComplete    EventKind = "complete"
	EventFailed      EventKind = "failed"
	EventCancelled   EventKind = "cancelled"
)

// StatusEvent is spec.md §3/§6's wire-stable status event envelope.
type StatusEvent struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Sequence  uint64    `json:"sequence"`
	Kind      EventKind `json:"kind"`
	AgentID   string    `json:"agent_id,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Bullet is one line of a query ResultArtifact, ordered by interrogative.
type Bullet struct {
	Interrogative Interrogative
	Text          string
	AgentID       string
}

// VisualizationSpec is the optional map payload appended to a query
// artifact when any agent returned spatial data (spec.md §4.7).
type VisualizationSpec struct {
	Bounds  [4]float64 // minLon, minLat, maxLon, maxLat
	Features []map[string]any
}

// ResultArtifact is spec.md §3's ResultArtifact entity — the ingest or
// query shape is selected by the owning Job's Class.
type ResultArtifact struct {
	JobID string

	// Ingest shape.
	Fields   map[string]any // namespaced agent_id.key -> value
	Location map[string]any
	Timestamp *time.Time
	Category  string

	// Query shape.
	Bullets       []Bullet
	Summary       string
	Visualization *VisualizationSpec

	// Shared.
	AgentStatuses map[string]InvocationStatus
}
