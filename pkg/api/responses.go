package api

import (
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// AcceptedResponse is the body returned from both submit operations
// (spec.md §6's {job_id, accepted_at}).
type AcceptedResponse struct {
	JobID      string    `json:"job_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// JobResponse is the body of GET /api/v1/jobs/:id: state plus the
// result artifact when the job has reached a terminal state.
type JobResponse struct {
	JobID       string                  `json:"job_id"`
	TenantID    string                  `json:"tenant_id"`
	Class       string                  `json:"class"`
	DomainID    string                  `json:"domain_id"`
	State       string                  `json:"state"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  *time.Time              `json:"finished_at,omitempty"`
	FailureCode string                  `json:"failure_code,omitempty"`
	FailureMsg  string                  `json:"failure_message,omitempty"`
	Artifact    *ResultArtifactResponse `json:"artifact,omitempty"`
}

// ResultArtifactResponse mirrors model.ResultArtifact for the wire —
// ingest fields are populated for Class=ingest jobs, query fields for
// Class=query jobs (spec.md §4.7).
type ResultArtifactResponse struct {
	Fields        map[string]any         `json:"fields,omitempty"`
	Location      map[string]any         `json:"location,omitempty"`
	Timestamp     *time.Time             `json:"timestamp,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Bullets       []BulletResponse       `json:"bullets,omitempty"`
	Summary       string                 `json:"summary,omitempty"`
	Visualization *VisualizationResponse `json:"visualization,omitempty"`
	AgentStatuses map[string]string      `json:"agent_statuses,omitempty"`
}

// BulletResponse is one model.Bullet on the wire.
type BulletResponse struct {
	Interrogative string `json:"interrogative"`
	Text          string `json:"text"`
	AgentID       string `json:"agent_id"`
}

// VisualizationResponse mirrors model.VisualizationSpec.
type VisualizationResponse struct {
	Bounds   [4]float64       `json:"bounds"`
	Features []map[string]any `json:"features"`
}

func jobToResponse(job *model.Job, artifact *model.ResultArtifact) JobResponse {
	resp := JobResponse{
		JobID:       job.JobID,
		TenantID:    job.TenantID,
		Class:       string(job.Class),
		DomainID:    job.DomainID,
		State:       string(job.State),
		StartedAt:   job.StartedAt,
		FailureCode: string(job.FailureCode),
		FailureMsg:  job.FailureMsg,
	}
	if !job.FinishedAt.IsZero() {
		resp.FinishedAt = &job.FinishedAt
	}
	if artifact != nil {
		resp.Artifact = artifactToResponse(artifact)
	}
	return resp
}

func artifactToResponse(a *model.ResultArtifact) *ResultArtifactResponse {
	resp := &ResultArtifactResponse{
		Fields:    a.Fields,
		Location:  a.Location,
		Timestamp: a.Timestamp,
		Category:  a.Category,
		Summary:   a.Summary,
	}
	for _, b := range a.Bullets {
		resp.Bullets = append(resp.Bullets, BulletResponse{
			Interrogative: string(b.Interrogative),
			Text:          b.Text,
			AgentID:       b.AgentID,
		})
	}
	if a.Visualization != nil {
		resp.Visualization = &VisualizationResponse{
			Bounds:   a.Visualization.Bounds,
			Features: a.Visualization.Features,
		}
	}
	if len(a.AgentStatuses) > 0 {
		resp.AgentStatuses = make(map[string]string, len(a.AgentStatuses))
		for agentID, status := range a.AgentStatuses {
			resp.AgentStatuses[agentID] = string(status)
		}
	}
	return resp
}

// AgentResponse mirrors model.AgentDefinition for the wire.
type AgentResponse struct {
	AgentID          string            `json:"agent_id"`
	Class            string            `json:"class"`
	SystemPrompt     string            `json:"system_prompt"`
	AllowedTools     []string          `json:"allowed_tools"`
	OutputSchema     map[string]string `json:"output_schema"`
	RequiredKeys     []string          `json:"required_keys,omitempty"`
	DependencyParent string            `json:"dependency_parent,omitempty"`
	Interrogative    string            `json:"interrogative,omitempty"`
	IsBuiltin        bool              `json:"is_builtin"`
	Version          int               `json:"version"`
}

func agentToResponse(a *model.AgentDefinition) AgentResponse {
	tools := make([]string, len(a.AllowedTools))
	for i, t := range a.AllowedTools {
		tools[i] = string(t)
	}
	schema := make(map[string]string, len(a.OutputSchema))
	for k, v := range a.OutputSchema {
		schema[k] = string(v)
	}
	return AgentResponse{
		AgentID:          a.AgentID,
		Class:            string(a.Class),
		SystemPrompt:     a.SystemPrompt,
		AllowedTools:     tools,
		OutputSchema:     schema,
		RequiredKeys:     a.RequiredKeys,
		DependencyParent: a.DependencyParent,
		Interrogative:    string(a.Interrogative),
		IsBuiltin:        a.IsBuiltin,
		Version:          a.Version,
	}
}

// PlaybookResponse mirrors model.Playbook for the wire.
type PlaybookResponse struct {
	PlaybookID string   `json:"playbook_id"`
	DomainID   string   `json:"domain_id"`
	Class      string   `json:"class"`
	AgentIDs   []string `json:"agent_ids"`
	Version    int      `json:"version"`
}

func playbookToResponse(p *model.Playbook) PlaybookResponse {
	return PlaybookResponse{
		PlaybookID: p.PlaybookID,
		DomainID:   p.DomainID,
		Class:      string(p.Class),
		AgentIDs:   p.AgentIDs,
		Version:    p.Version,
	}
}

// GraphResponse mirrors model.DependencyGraph for the wire.
type GraphResponse struct {
	GraphID    string         `json:"graph_id"`
	PlaybookID string         `json:"playbook_id"`
	Edges      []EdgeResponse `json:"edges"`
}

// EdgeResponse is one model.Edge on the wire.
type EdgeResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func graphToResponse(g *model.DependencyGraph) GraphResponse {
	resp := GraphResponse{GraphID: g.GraphID, PlaybookID: g.PlaybookID}
	for _, e := range g.Edges {
		resp.Edges = append(resp.Edges, EdgeResponse{From: e.From, To: e.To})
	}
	return resp
}

// TemplateResponse mirrors model.DomainTemplate for the wire.
type TemplateResponse struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
}

func templateToResponse(t *model.DomainTemplate) TemplateResponse {
	return TemplateResponse{TemplateID: t.TemplateID, Name: t.Name}
}
