package tool

import (
	"context"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// aclCacheTTL is the in-process authorization cache lifetime (spec.md
// §4.4): a permission change takes up to this long to take effect
// unless invalidated explicitly via Invalidate.
const aclCacheTTL = 5 * time.Minute

type aclKey struct {
	tenantID string
	agentID  string
	tool     model.ToolName
}

type aclEntry struct {
	allowed   bool
	expiresAt time.Time
}

// aclCache wraps an AuthChecker with a time-bounded cache keyed by
// (tenant, agent, tool), so a hot agent loop doesn't re-check
// authorization on every tool call.
type aclCache struct {
	checker AuthChecker

	mu      sync.Mutex
	entries map[aclKey]aclEntry
}

func newACLCache(checker AuthChecker) *aclCache {
	return &aclCache{
		checker: checker,
		entries: make(map[aclKey]aclEntry),
	}
}

func (c *aclCache) Allowed(ctx context.Context, tenantID, agentID string, toolName model.ToolName) (bool, error) {
	key := aclKey{tenantID, agentID, toolName}

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.allowed, nil
	}

	allowed, err := c.checker.Allowed(ctx, tenantID, agentID, toolName)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.entries[key] = aclEntry{allowed: allowed, expiresAt: time.Now().Add(aclCacheTTL)}
	c.mu.Unlock()

	return allowed, nil
}

// Invalidate drops any cached decision for (tenant, agent, tool) so the
// next call re-checks with the underlying AuthChecker. Used when a
// permission is changed explicitly (spec.md §4.4).
func (c *aclCache) Invalidate(tenantID, agentID string, toolName model.ToolName) {
	c.mu.Lock()
	delete(c.entries, aclKey{tenantID, agentID, toolName})
	c.mu.Unlock()
}
