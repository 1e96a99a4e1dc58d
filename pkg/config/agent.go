// Package config implements the Config Store: a durable, validated
// catalog of agent definitions, playbooks, dependency graphs, and
// domain templates, all tenant-scoped.
package config

import (
	"fmt"
	"sync"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// AgentRegistry stores agent definitions in memory with thread-safe,
// tenant-scoped access.
type AgentRegistry struct {
	agents map[string]*model.AgentDefinition // key: tenant_id + "/" + agent_id
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry from an initial snapshot.
func NewAgentRegistry(agents map[string]*model.AgentDefinition) *AgentRegistry {
	copied := make(map[string]*model.AgentDefinition, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{agents: copied}
}

func agentKey(tenantID, agentID string) string {
	return tenantID + "/" + agentID
}

// Get retrieves an agent definition by tenant and id (thread-safe)
func (r *AgentRegistry) Get(tenantID, agentID string) (*model.AgentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[agentKey(tenantID, agentID)]
	if !exists {
		return nil, model.Wrap(model.CodeBadReference, fmt.Sprintf("agent not found: %s", agentID), ErrAgentNotFound)
	}
	return agent, nil
}

// Put inserts or replaces an agent definition (thread-safe). Callers are
// expected to have already run it through the Validator.
func (r *AgentRegistry) Put(agent *model.AgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentKey(agent.TenantID, agent.AgentID)] = agent
}

// Delete removes an agent definition (thread-safe). Returns false if it
// was not present.
func (r *AgentRegistry) Delete(tenantID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := agentKey(tenantID, agentID)
	if _, exists := r.agents[key]; !exists {
		return false
	}
	delete(r.agents, key)
	return true
}

// GetAllForTenant returns every agent definition owned by tenantID
// (thread-safe, returns a copy keyed by agent_id)
func (r *AgentRegistry) GetAllForTenant(tenantID string) map[string]*model.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*model.AgentDefinition)
	for _, agent := range r.agents {
		if agent.TenantID == tenantID {
			result[agent.AgentID] = agent
		}
	}
	return result
}

// Has checks if an agent exists in the registry (thread-safe)
func (r *AgentRegistry) Has(tenantID, agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.agents[agentKey(tenantID, agentID)]
	return exists
}

// Len returns the number of agents in the registry, across all tenants (thread-safe)
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
