package model

// Plan is the Config Store's read-only output of get_plan: the
// playbook's agent set, the dependency graph's edges, and a precomputed
// level assignment expressed purely in agent ids. The Plan Builder
// resolves this into a full ExecutionPlan with AgentDefinition refs.
type Plan struct {
	TenantID   string
	DomainID   string
	PlaybookID string
	GraphID    string
	Class      Class
	AgentIDs   []string
	Edges      []Edge
	Levels     [][]string // level index -> sorted agent ids
}

// ScheduledAgent is one agent placed at a specific level of an
// ExecutionPlan by the Plan Builder (spec.md §4.2).
type ScheduledAgent struct {
	AgentID  string
	ParentID string // empty if the agent has no dependency parent
	Agent    *AgentDefinition
}

// Level is one execution level: all its agents run in parallel.
type Level []ScheduledAgent

// ExecutionPlan is the Plan Builder's pure, deterministic output. It is
// embedded into a Job at start so re-runs and audits are reproducible
// even if the Config Store is later edited (spec.md §4.2).
type ExecutionPlan struct {
	PlaybookID string
	GraphID    string
	Class      Class
	Levels     []Level
}

// AgentIDs returns every agent id across all levels, in level order then
// lexicographic order within a level (the Plan Builder's own tie-break),
// useful for deterministic iteration and tests.
func (p *ExecutionPlan) AgentIDs() []string {
	var ids []string
	for _, level := range p.Levels {
		for _, sa := range level {
			ids = append(ids, sa.AgentID)
		}
	}
	return ids
}
