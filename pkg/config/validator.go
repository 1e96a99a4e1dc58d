package config

import (
	"fmt"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// Validator validates writes to the Config Store before they touch a
// registry: one method per operation, fail-fast, mirroring the
// reference's ValidateAll/validateX split.
type Validator struct {
	store *Store
}

// NewValidator creates a validator bound to the given store, so
// cross-reference checks (agent exists, playbook's agents exist) can
// consult the live registries.
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// ValidateAgent implements put_agent's validation (spec §4.1):
// SchemaViolation if len(output_schema) > 5, BuiltinImmutable on
// attempting to modify a built-in, BadReference if dependency_parent is
// missing or its class mismatches.
func (v *Validator) ValidateAgent(def *model.AgentDefinition) error {
	if !def.Class.IsValid() {
		return NewValidationError(model.CodeSchemaViolation, "agent", def.AgentID, "class",
			fmt.Errorf("unknown class %q", def.Class))
	}

	if len(def.OutputSchema) > model.MaxOutputKeys {
		return NewValidationError(model.CodeSchemaViolation, "agent", def.AgentID, "output_schema",
			fmt.Errorf("at most %d output keys allowed, got %d", model.MaxOutputKeys, len(def.OutputSchema)))
	}

	for _, key := range def.RequiredKeys {
		if _, ok := def.OutputSchema[key]; !ok {
			return NewValidationError(model.CodeSchemaViolation, "agent", def.AgentID, "required_keys",
				fmt.Errorf("required key %q is not declared in output_schema", key))
		}
	}

	for _, tool := range def.AllowedTools {
		if !tool.IsValid() {
			return NewValidationError(model.CodeSchemaViolation, "agent", def.AgentID, "allowed_tools",
				fmt.Errorf("unknown tool %q", tool))
		}
	}

	if def.Class == model.ClassQuery && def.Interrogative != "" && !def.Interrogative.IsValid() {
		return NewValidationError(model.CodeSchemaViolation, "agent", def.AgentID, "interrogative",
			fmt.Errorf("unknown interrogative %q", def.Interrogative))
	}

	if existing, err := v.store.agents.Get(def.TenantID, def.AgentID); err == nil && existing.IsBuiltin {
		return NewValidationError(model.CodeBuiltinImmutable, "agent", def.AgentID, "",
			fmt.Errorf("built-in agents cannot be modified"))
	}

	if def.DependencyParent != "" {
		parent, err := v.store.agents.Get(def.TenantID, def.DependencyParent)
		if err != nil {
			return NewValidationError(model.CodeBadReference, "agent", def.AgentID, "dependency_parent",
				fmt.Errorf("parent agent %q not found", def.DependencyParent))
		}
		if parent.Class != def.Class {
			return NewValidationError(model.CodeBadReference, "agent", def.AgentID, "dependency_parent",
				fmt.Errorf("parent agent %q has class %q, expected %q", def.DependencyParent, parent.Class, def.Class))
		}
	}

	return nil
}

// ValidatePlaybook implements put_playbook's validation (spec §4.1):
// BadReference if any agent_id is absent, ClassMismatch if any agent's
// class does not match the playbook's class.
func (v *Validator) ValidatePlaybook(p *model.Playbook) error {
	if !p.Class.IsValid() {
		return NewValidationError(model.CodeSchemaViolation, "playbook", p.PlaybookID, "class",
			fmt.Errorf("unknown class %q", p.Class))
	}

	if len(p.AgentIDs) == 0 {
		return NewValidationError(model.CodeSchemaViolation, "playbook", p.PlaybookID, "agent_ids",
			fmt.Errorf("at least one agent required"))
	}

	for _, agentID := range p.AgentIDs {
		agent, err := v.store.agents.Get(p.TenantID, agentID)
		if err != nil {
			return NewValidationError(model.CodeBadReference, "playbook", p.PlaybookID, "agent_ids",
				fmt.Errorf("agent %q not found", agentID))
		}
		if agent.Class != p.Class {
			return NewValidationError(model.CodeClassMismatch, "playbook", p.PlaybookID, "agent_ids",
				fmt.Errorf("agent %q has class %q, playbook is %q", agentID, agent.Class, p.Class))
		}
	}

	return nil
}

// ValidateGraph implements put_dependency_graph's validation (spec §4.1):
// runs the graph algorithm over g.Edges against the owning playbook's
// agent set and returns the Cycle/MultiParent/MultiLevel/DanglingEdge
// error on violation.
func (v *Validator) ValidateGraph(g *model.DependencyGraph) ([][]string, error) {
	playbook, err := v.store.playbooks.Get(g.TenantID, g.PlaybookID)
	if err != nil {
		return nil, NewValidationError(model.CodeBadReference, "graph", g.GraphID, "playbook_id",
			fmt.Errorf("playbook %q not found", g.PlaybookID))
	}

	levels, verr := ValidateGraph(g.Edges, playbook.AgentIDs)
	if verr != nil {
		code, _ := model.CodeOf(verr)
		return nil, NewValidationError(code, "graph", g.GraphID, "edges", verr)
	}
	return levels, nil
}
