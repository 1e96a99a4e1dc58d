package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// Backup is a content-addressed archive of a record's previous version,
// written before every overwrite (spec §4.1 "the old record is retained
// before overwrite").
type Backup struct {
	Component string
	ID        string
	Version   int
	Digest    string
	Payload   []byte
	CreatedAt time.Time
}

// BackupStore persists Backups. The Postgres-backed implementation lives
// in pkg/store/postgres; an in-memory implementation is used in tests.
type BackupStore interface {
	SaveBackup(ctx context.Context, b *Backup) error
}

// Store is the Config Store: the validated, versioned, tenant-scoped
// catalog of agents, playbooks, dependency graphs, and domain templates.
// It is the single object through which every write operation in
// spec §4.1 flows.
type Store struct {
	agents    *AgentRegistry
	playbooks *PlaybookRegistry
	graphs    *GraphRegistry
	templates *TemplateRegistry
	validator *Validator
	backups   BackupStore

	mu sync.Mutex // serializes writes; registries have their own RWMutex for reads
}

// NewStore assembles a Store from already-loaded registries.
func NewStore(agents *AgentRegistry, playbooks *PlaybookRegistry, graphs *GraphRegistry, templates *TemplateRegistry, backups BackupStore) *Store {
	s := &Store{
		agents:    agents,
		playbooks: playbooks,
		graphs:    graphs,
		templates: templates,
		backups:   backups,
	}
	s.validator = NewValidator(s)
	return s
}

// Agents, Playbooks, Graphs and Templates expose the read-only registries
// for callers (e.g. the API layer) that only need lookups.
func (s *Store) Agents() *AgentRegistry       { return s.agents }

// AgentsForTenant returns every agent definition owned by tenantID,
// keyed by agent_id — the shape pkg/orchestrator needs to resolve a
// Plan's agent ids into a fully populated ExecutionPlan (pkg/plan.Build).
func (s *Store) AgentsForTenant(tenantID string) map[string]*model.AgentDefinition {
	return s.agents.GetAllForTenant(tenantID)
}
func (s *Store) Playbooks() *PlaybookRegistry { return s.playbooks }
func (s *Store) Graphs() *GraphRegistry       { return s.graphs }
func (s *Store) Templates() *TemplateRegistry { return s.templates }

func digest(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *Store) archive(ctx context.Context, component, id string, version int, payload any) error {
	if s.backups == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s %s for backup: %w", component, id, err)
	}
	return s.backups.SaveBackup(ctx, &Backup{
		Component: component,
		ID:        id,
		Version:   version,
		Digest:    digest(payload),
		Payload:   b,
		CreatedAt: time.Now(),
	})
}

// PutAgent implements put_agent(def) -> version (spec §4.1).
func (s *Store) PutAgent(ctx context.Context, def *model.AgentDefinition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.ValidateAgent(def); err != nil {
		return 0, err
	}

	if existing, err := s.agents.Get(def.TenantID, def.AgentID); err == nil {
		if archErr := s.archive(ctx, "agent", def.AgentID, existing.Version, existing); archErr != nil {
			return 0, archErr
		}
		def.Version = existing.Version + 1
	} else {
		def.Version = 1
	}
	def.UpdatedAt = time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = def.UpdatedAt
	}

	s.agents.Put(def)
	return def.Version, nil
}

// PutPlaybook implements put_playbook(p) (spec §4.1).
func (s *Store) PutPlaybook(ctx context.Context, p *model.Playbook) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.ValidatePlaybook(p); err != nil {
		return 0, err
	}

	if existing, err := s.playbooks.Get(p.TenantID, p.PlaybookID); err == nil {
		if archErr := s.archive(ctx, "playbook", p.PlaybookID, existing.Version, existing); archErr != nil {
			return 0, archErr
		}
		p.Version = existing.Version + 1
	} else {
		p.Version = 1
	}
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	s.playbooks.Put(p)
	return p.Version, nil
}

// PutDependencyGraph implements put_dependency_graph(g) (spec §4.1). The
// precomputed level assignment is discarded here; the Plan Builder
// (pkg/plan) recomputes it from the graph's edges when resolving a Plan,
// keeping the Config Store's graph algorithm as the one source of truth.
func (s *Store) PutDependencyGraph(ctx context.Context, g *model.DependencyGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.validator.ValidateGraph(g); err != nil {
		return err
	}

	if existing, ok := s.graphs.GetByPlaybook(g.TenantID, g.PlaybookID); ok {
		if archErr := s.archive(ctx, "graph", existing.GraphID, 0, existing); archErr != nil {
			return archErr
		}
	}

	s.graphs.Put(g)
	return nil
}

// GetPlan implements get_plan(domain_id, class) -> Plan (spec §4.1): the
// playbook's agent set, the graph's edges, and the precomputed
// execution-level assignment, all read-only.
func (s *Store) GetPlan(tenantID, domainID string, class model.Class) (*model.Plan, error) {
	playbook, err := s.playbooks.GetByDomainAndClass(tenantID, domainID, class)
	if err != nil {
		return nil, err
	}

	graph, hasGraph := s.graphs.GetByPlaybook(tenantID, playbook.PlaybookID)
	var edges []model.Edge
	graphID := ""
	if hasGraph {
		edges = graph.Edges
		graphID = graph.GraphID
	}

	levels, err := ValidateGraph(edges, playbook.AgentIDs)
	if err != nil {
		return nil, err
	}

	return &model.Plan{
		TenantID:   tenantID,
		DomainID:   domainID,
		PlaybookID: playbook.PlaybookID,
		GraphID:    graphID,
		Class:      class,
		AgentIDs:   playbook.AgentIDs,
		Edges:      edges,
		Levels:     levels,
	}, nil
}

// InstantiateTemplate implements instantiate_template(template_id) (spec
// §4.1): atomic creation of fresh agent ids with every reference in the
// template's playbooks and graphs rewritten before anything becomes
// visible. Validation runs against the rewritten copies so a malformed
// template can never partially land in the live registries.
func (s *Store) InstantiateTemplate(ctx context.Context, templateID, tenantID string) (*InstantiationResult, error) {
	tmpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}

	result := Instantiate(tmpl, tenantID, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range result.Agents {
		if err := s.validator.ValidateAgent(a); err != nil {
			return nil, fmt.Errorf("instantiate_template %s: %w", templateID, err)
		}
	}
	for _, a := range result.Agents {
		a.Version = 1
		a.CreatedAt = time.Now()
		a.UpdatedAt = a.CreatedAt
		s.agents.Put(a)
	}
	for _, p := range result.Playbooks {
		if err := s.validator.ValidatePlaybook(p); err != nil {
			return nil, fmt.Errorf("instantiate_template %s: %w", templateID, err)
		}
	}
	for _, p := range result.Playbooks {
		p.Version = 1
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		s.playbooks.Put(p)
	}
	for _, g := range result.Graphs {
		playbook, err := s.playbooks.Get(tenantID, g.PlaybookID)
		if err != nil {
			return nil, fmt.Errorf("instantiate_template %s: %w", templateID, err)
		}
		if _, err := ValidateGraph(g.Edges, playbook.AgentIDs); err != nil {
			return nil, fmt.Errorf("instantiate_template %s: %w", templateID, err)
		}
	}
	for _, g := range result.Graphs {
		s.graphs.Put(g)
	}

	return result, nil
}
