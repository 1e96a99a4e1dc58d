package config

import (
	"context"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// AuthChecker implements the Tool Broker's tool.AuthChecker against the
// live agent registry: an agent may invoke a tool iff the tool appears
// in that agent's AllowedTools (spec.md §4.4).
type AuthChecker struct {
	store *Store
}

// NewAuthChecker constructs an AuthChecker over store.
func NewAuthChecker(store *Store) *AuthChecker {
	return &AuthChecker{store: store}
}

// Allowed implements tool.AuthChecker.
func (c *AuthChecker) Allowed(_ context.Context, tenantID, agentID string, toolName model.ToolName) (bool, error) {
	agent, err := c.store.Agents().Get(tenantID, agentID)
	if err != nil {
		return false, err
	}
	for _, t := range agent.AllowedTools {
		if t == toolName {
			return true, nil
		}
	}
	return false, nil
}
