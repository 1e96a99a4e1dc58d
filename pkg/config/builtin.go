package config

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fieldstack/orchestrator/pkg/model"
)

//go:embed builtin/catalog.yaml
var builtinCatalogYAML []byte

//go:embed builtin/template_incident.yaml
var builtinTemplateYAML []byte

type templateYAML struct {
	TemplateID string         `yaml:"template_id"`
	Name       string         `yaml:"name"`
	Agents     []agentYAML    `yaml:"agents"`
	Playbooks  []playbookYAML `yaml:"playbooks"`
	Graphs     []graphYAML    `yaml:"graphs"`
}

var (
	builtinOnce      sync.Once
	builtinAgents    []*model.AgentDefinition
	builtinPlaybooks []*model.Playbook
	builtinGraphs    []*model.DependencyGraph
	builtinTemplates map[string]*model.DomainTemplate
)

func parseBuiltins() {
	var doc tenantYAML
	if err := yaml.Unmarshal(builtinCatalogYAML, &doc); err != nil {
		panic(fmt.Sprintf("config: invalid embedded builtin catalog: %v", err))
	}

	for _, a := range doc.Agents {
		def, err := a.toModel(doc.TenantID)
		if err != nil {
			panic(fmt.Sprintf("config: invalid embedded builtin agent %s: %v", a.AgentID, err))
		}
		def.IsBuiltin = true
		builtinAgents = append(builtinAgents, def)
	}
	for _, p := range doc.Playbooks {
		builtinPlaybooks = append(builtinPlaybooks, p.toModel(doc.TenantID))
	}
	for _, g := range doc.Graphs {
		builtinGraphs = append(builtinGraphs, g.toModel(doc.TenantID))
	}

	var tmpl templateYAML
	if err := yaml.Unmarshal(builtinTemplateYAML, &tmpl); err != nil {
		panic(fmt.Sprintf("config: invalid embedded builtin template: %v", err))
	}

	agents := make([]model.AgentDefinition, 0, len(tmpl.Agents))
	for _, a := range tmpl.Agents {
		def, err := a.toModel("")
		if err != nil {
			panic(fmt.Sprintf("config: invalid embedded template agent %s: %v", a.AgentID, err))
		}
		agents = append(agents, *def)
	}
	playbooks := make([]model.Playbook, 0, len(tmpl.Playbooks))
	for _, p := range tmpl.Playbooks {
		playbooks = append(playbooks, *p.toModel(""))
	}
	graphs := make([]model.DependencyGraph, 0, len(tmpl.Graphs))
	for _, g := range tmpl.Graphs {
		graphs = append(graphs, *g.toModel(""))
	}

	builtinTemplates = map[string]*model.DomainTemplate{
		tmpl.TemplateID: {
			TemplateID: tmpl.TemplateID,
			Name:       tmpl.Name,
			Agents:     agents,
			Playbooks:  playbooks,
			Graphs:     graphs,
		},
	}
}

// BuiltinCatalog returns the built-in agents, playbooks and dependency
// graph shipped with the engine (mirroring the reference's built-in
// agent set), read-only at boot and immutable thereafter (spec §4.1).
func BuiltinCatalog() ([]*model.AgentDefinition, []*model.Playbook, []*model.DependencyGraph) {
	builtinOnce.Do(parseBuiltins)
	return builtinAgents, builtinPlaybooks, builtinGraphs
}

// BuiltinTemplates returns the built-in domain templates keyed by
// template_id, available to instantiate_template before any tenant has
// defined its own.
func BuiltinTemplates() map[string]*model.DomainTemplate {
	builtinOnce.Do(parseBuiltins)
	copied := make(map[string]*model.DomainTemplate, len(builtinTemplates))
	for k, v := range builtinTemplates {
		copied[k] = v
	}
	return copied
}
