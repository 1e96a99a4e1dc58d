package config

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// TemplateRegistry stores domain templates in memory with thread-safe
// access. Templates are global (not tenant-scoped) and immutable once
// loaded.
type TemplateRegistry struct {
	templates map[string]*model.DomainTemplate
	mu        sync.RWMutex
}

// NewTemplateRegistry creates a new template registry from an initial snapshot.
func NewTemplateRegistry(templates map[string]*model.DomainTemplate) *TemplateRegistry {
	copied := make(map[string]*model.DomainTemplate, len(templates))
	for k, v := range templates {
		copied[k] = v
	}
	return &TemplateRegistry{templates: copied}
}

// Get retrieves a domain template by id (thread-safe)
func (r *TemplateRegistry) Get(templateID string) (*model.DomainTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.templates[templateID]
	if !exists {
		return nil, model.Wrap(model.CodeBadReference, fmt.Sprintf("domain template not found: %s", templateID), ErrTemplateNotFound)
	}
	return t, nil
}

// Has checks if a template exists in the registry (thread-safe)
func (r *TemplateRegistry) Has(templateID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.templates[templateID]
	return exists
}

// Len returns the number of templates in the registry (thread-safe)
func (r *TemplateRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// InstantiationResult is the atomic output of instantiate_template:
// fresh agent ids plus the playbooks and graphs rewritten to use them.
type InstantiationResult struct {
	AgentIDMap map[string]string // template-local symbolic id -> fresh tenant-scoped id
	Agents     []*model.AgentDefinition
	Playbooks  []*model.Playbook
	Graphs     []*model.DependencyGraph
}

// Instantiate creates fresh agent ids for every agent in the template and
// rewrites every reference to them (playbook agent lists, dependency
// parents, graph edges) before anything becomes visible to the rest of
// the store. The rewrite is computed entirely in memory; the caller is
// responsible for applying the result atomically.
func Instantiate(tmpl *model.DomainTemplate, tenantID string, newID func() string) *InstantiationResult {
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	idMap := make(map[string]string, len(tmpl.Agents))
	for _, a := range tmpl.Agents {
		idMap[a.AgentID] = fmt.Sprintf("%s-%s", a.AgentID, newID())
	}

	agents := make([]*model.AgentDefinition, 0, len(tmpl.Agents))
	for _, a := range tmpl.Agents {
		rewritten := a
		rewritten.TenantID = tenantID
		rewritten.AgentID = idMap[a.AgentID]
		if a.DependencyParent != "" {
			rewritten.DependencyParent = idMap[a.DependencyParent]
		}
		agents = append(agents, &rewritten)
	}

	playbookIDMap := make(map[string]string, len(tmpl.Playbooks))
	for _, p := range tmpl.Playbooks {
		playbookIDMap[p.PlaybookID] = fmt.Sprintf("%s-%s", p.PlaybookID, newID())
	}

	playbooks := make([]*model.Playbook, 0, len(tmpl.Playbooks))
	for _, p := range tmpl.Playbooks {
		rewritten := p
		rewritten.TenantID = tenantID
		rewritten.PlaybookID = playbookIDMap[p.PlaybookID]
		rewritten.AgentIDs = make([]string, len(p.AgentIDs))
		for i, aid := range p.AgentIDs {
			rewritten.AgentIDs[i] = idMap[aid]
		}
		playbooks = append(playbooks, &rewritten)
	}

	graphs := make([]*model.DependencyGraph, 0, len(tmpl.Graphs))
	for _, g := range tmpl.Graphs {
		rewritten := g
		rewritten.TenantID = tenantID
		rewritten.GraphID = fmt.Sprintf("%s-%s", g.GraphID, newID())
		rewritten.PlaybookID = playbookIDMap[g.PlaybookID]
		rewritten.Edges = make([]model.Edge, len(g.Edges))
		for i, e := range g.Edges {
			rewritten.Edges[i] = model.Edge{From: idMap[e.From], To: idMap[e.To]}
		}
		graphs = append(graphs, &rewritten)
	}

	return &InstantiationResult{AgentIDMap: idMap, Agents: agents, Playbooks: playbooks, Graphs: graphs}
}
