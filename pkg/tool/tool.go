// Package tool implements the Tool Broker: a uniform adapter over the
// closed set of tool capabilities (LLM completion, entity/sentiment,
// geocode, web search, data queries, vector search, custom HTTP). It
// enforces per-agent authorization, resolves credentials, retries
// idempotent tools, masks results, and emits lifecycle events.
package tool

import (
	"context"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// Invocation carries the caller identity the Broker needs for
// authorization, credential scoping and event attribution.
type Invocation struct {
	TenantID string
	AgentID  string
	JobID    string
}

// Adapter executes one tool call against a concrete backend. The
// Broker owns authorization, retry and masking; an Adapter only needs
// to know how to talk to its backend.
type Adapter interface {
	// Invoke performs a single call. It must not retry internally —
	// the Broker decides retry policy based on Idempotent.
	Invoke(ctx context.Context, params map[string]any, inv Invocation) (map[string]any, error)

	// Idempotent reports whether the Broker may safely retry this
	// tool on transient failure.
	Idempotent() bool
}

// AuthChecker answers whether an agent may use a tool. Implementations
// back the 5-minute ACL cache (pkg/tool/acl.go) on a cache miss.
type AuthChecker interface {
	Allowed(ctx context.Context, tenantID, agentID string, tool model.ToolName) (bool, error)
}

// EventSink receives the Broker's lifecycle events. pkg/statusbus
// implements this to fan events out to subscribers.
type EventSink interface {
	ToolInvoked(tenantID, jobID, agentID string, tool model.ToolName)
	ToolDone(tenantID, jobID, agentID string, tool model.ToolName)
	ToolFailed(tenantID, jobID, agentID string, tool model.ToolName, err error)
}

// SecretProvider resolves credentials for a tool on first use per
// process and holds them only in memory; callers must never log or
// emit a resolved secret.
type SecretProvider interface {
	Secret(ctx context.Context, tenantID string, tool model.ToolName) (string, error)
}
