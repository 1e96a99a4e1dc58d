package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// agentYAML/playbookYAML/graphYAML mirror model.AgentDefinition/Playbook/
// DependencyGraph but with YAML tags and string-keyed fields appropriate
// for a hand-written document.
type agentYAML struct {
	AgentID          string            `yaml:"agent_id"`
	Class            string            `yaml:"class"`
	SystemPrompt     string            `yaml:"system_prompt"`
	AllowedTools     []string          `yaml:"allowed_tools"`
	OutputSchema     map[string]string `yaml:"output_schema"`
	RequiredKeys     []string          `yaml:"required_keys"`
	DependencyParent string            `yaml:"dependency_parent,omitempty"`
	Interrogative    string            `yaml:"interrogative,omitempty"`
}

type playbookYAML struct {
	PlaybookID string   `yaml:"playbook_id"`
	DomainID   string   `yaml:"domain_id"`
	Class      string   `yaml:"class"`
	AgentIDs   []string `yaml:"agent_ids"`
}

type edgeYAML struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type graphYAML struct {
	GraphID    string     `yaml:"graph_id"`
	PlaybookID string     `yaml:"playbook_id"`
	Edges      []edgeYAML `yaml:"edges"`
}

// tenantYAML is one tenant's config document: config/<tenant_id>.yaml.
type tenantYAML struct {
	TenantID  string         `yaml:"tenant_id"`
	Agents    []agentYAML    `yaml:"agents"`
	Playbooks []playbookYAML `yaml:"playbooks"`
	Graphs    []graphYAML    `yaml:"graphs"`
}

// LoadDir loads every tenant YAML document under dir (after a .env
// overlay and ${VAR} expansion) and assembles a ready-to-use Store,
// seeded with the built-in agents and playbooks from builtin.go.
//
// Steps:
//  1. Load .env (if present) so ${VAR} expansion below has values.
//  2. Read every *.yaml file in dir, expand env vars, parse.
//  3. Merge built-ins (read-only) with the loaded tenant documents.
//  4. Build registries and a Store; PutAgent/PutPlaybook/PutDependencyGraph
//     run every loaded record through the Validator before it is visible.
func LoadDir(ctx context.Context, dir string, backups BackupStore) (*Store, error) {
	log := slog.With("config_dir", dir)

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env overlay", "error", err)
	}

	builtinAgents, builtinPlaybooks, builtinGraphs := BuiltinCatalog()

	agents := NewAgentRegistry(nil)
	playbooks := NewPlaybookRegistry(nil)
	graphs := NewGraphRegistry(nil)
	templates := NewTemplateRegistry(BuiltinTemplates())
	store := NewStore(agents, playbooks, graphs, templates, backups)

	for _, a := range builtinAgents {
		a.IsBuiltin = true
		agents.Put(a)
	}
	for _, p := range builtinPlaybooks {
		playbooks.Put(p)
	}
	for _, g := range builtinGraphs {
		graphs.Put(g)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("config directory absent, running with built-ins only")
			return store, nil
		}
		return nil, NewLoadError(dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		if err := loadTenantFile(ctx, store, filepath.Join(dir, entry.Name())); err != nil {
			return nil, NewLoadError(entry.Name(), err)
		}
	}

	log.Info("configuration loaded",
		"agents", agents.Len(), "playbooks", playbooks.Len(), "graphs", graphs.Len())
	return store, nil
}

func loadTenantFile(ctx context.Context, store *Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw = ExpandEnv(raw)

	var doc tenantYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	for _, a := range doc.Agents {
		def, err := a.toModel(doc.TenantID)
		if err != nil {
			return err
		}
		if _, err := store.PutAgent(ctx, def); err != nil {
			return err
		}
	}
	for _, p := range doc.Playbooks {
		pb := p.toModel(doc.TenantID)
		if _, err := store.PutPlaybook(ctx, pb); err != nil {
			return err
		}
	}
	for _, g := range doc.Graphs {
		gr := g.toModel(doc.TenantID)
		if err := store.PutDependencyGraph(ctx, gr); err != nil {
			return err
		}
	}

	return nil
}

func (a agentYAML) toModel(tenantID string) (*model.AgentDefinition, error) {
	schema := make(map[string]model.FieldType, len(a.OutputSchema))
	for k, v := range a.OutputSchema {
		schema[k] = model.FieldType(v)
	}
	tools := make([]model.ToolName, len(a.AllowedTools))
	for i, t := range a.AllowedTools {
		tools[i] = model.ToolName(t)
	}
	return &model.AgentDefinition{
		TenantID:         tenantID,
		AgentID:          a.AgentID,
		Class:            model.Class(a.Class),
		SystemPrompt:     a.SystemPrompt,
		AllowedTools:     tools,
		OutputSchema:     schema,
		RequiredKeys:     a.RequiredKeys,
		DependencyParent: a.DependencyParent,
		Interrogative:    model.Interrogative(a.Interrogative),
	}, nil
}

func (p playbookYAML) toModel(tenantID string) *model.Playbook {
	return &model.Playbook{
		TenantID:   tenantID,
		PlaybookID: p.PlaybookID,
		DomainID:   p.DomainID,
		Class:      model.Class(p.Class),
		AgentIDs:   p.AgentIDs,
	}
}

func (g graphYAML) toModel(tenantID string) *model.DependencyGraph {
	edges := make([]model.Edge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = model.Edge{From: e.From, To: e.To}
	}
	return &model.DependencyGraph{
		TenantID:   tenantID,
		GraphID:    g.GraphID,
		PlaybookID: g.PlaybookID,
		Edges:      edges,
	}
}
