package api

// SubmitIngestRequest is the body of POST /api/v1/jobs/ingest.
type SubmitIngestRequest struct {
	DomainID    string   `json:"domain_id" binding:"required"`
	Text        string   `json:"text" binding:"required"`
	Attachments []string `json:"attachments,omitempty"`
}

// SubmitQueryRequest is the body of POST /api/v1/jobs/query.
type SubmitQueryRequest struct {
	DomainID string            `json:"domain_id" binding:"required"`
	Question string            `json:"question" binding:"required"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// PutAgentRequest is the body of PUT /api/v1/config/agents.
type PutAgentRequest struct {
	AgentID          string            `json:"agent_id" binding:"required"`
	Class            string            `json:"class" binding:"required"`
	SystemPrompt     string            `json:"system_prompt"`
	AllowedTools     []string          `json:"allowed_tools"`
	OutputSchema     map[string]string `json:"output_schema"`
	RequiredKeys     []string          `json:"required_keys,omitempty"`
	DependencyParent string            `json:"dependency_parent,omitempty"`
	Interrogative    string            `json:"interrogative,omitempty"`
}

// PutPlaybookRequest is the body of PUT /api/v1/config/playbooks.
type PutPlaybookRequest struct {
	PlaybookID string   `json:"playbook_id" binding:"required"`
	DomainID   string   `json:"domain_id" binding:"required"`
	Class      string   `json:"class" binding:"required"`
	AgentIDs   []string `json:"agent_ids" binding:"required"`
}

// PutGraphRequest is the body of PUT /api/v1/config/graphs.
type PutGraphRequest struct {
	GraphID    string        `json:"graph_id" binding:"required"`
	PlaybookID string        `json:"playbook_id" binding:"required"`
	Edges      []EdgeRequest `json:"edges"`
}

// EdgeRequest is one dependency edge in a PutGraphRequest.
type EdgeRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}
