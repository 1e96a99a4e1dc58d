package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/masking"
	"github.com/fieldstack/orchestrator/pkg/model"
)

// isTransient classifies a tool error as retryable. Only codes the
// Broker itself is entitled to retry (never ToolDenied, never a
// caller-visible validation failure).
func isTransient(err error) bool {
	code, ok := model.CodeOf(err)
	if !ok {
		// Unclassified errors (network blips, adapter-internal) are
		// treated as transient; adapters that want a hard failure
		// should wrap it in a *model.Error.
		return true
	}
	switch code {
	case model.CodeToolFailed, model.CodeAtCapacity, model.CodeBackpressure:
		return true
	default:
		return false
	}
}

// Broker is the Tool Broker: it authorizes, retries and masks every
// tool invocation, and is the only path an Agent Runtime may use to
// reach a tool backend (spec.md §4.3 "Direct I/O from an agent is
// disallowed").
type Broker struct {
	adapters map[model.ToolName]Adapter
	acl      *aclCache
	events   EventSink
	masker   *masking.Service

	limitsMu sync.Mutex
	limits   map[model.ToolName]chan struct{}
}

// NewBroker constructs a Broker. adapters need not cover every
// model.ToolName; an unregistered tool fails with CodeToolDenied.
func NewBroker(adapters map[model.ToolName]Adapter, checker AuthChecker, events EventSink, masker *masking.Service) *Broker {
	return &Broker{
		adapters: adapters,
		acl:      newACLCache(checker),
		events:   events,
		masker:   masker,
		limits:   make(map[model.ToolName]chan struct{}),
	}
}

// SetConcurrencyLimit bounds the number of simultaneous in-flight calls
// to tool across every agent and tenant (spec.md §5: "Tool Broker
// respects per-tool concurrency ceilings (e.g., LLM provider limits) via
// a semaphore; waiters observe the deadline"). Set once during wiring,
// before the broker serves traffic.
func (b *Broker) SetConcurrencyLimit(tool model.ToolName, n int) {
	b.limitsMu.Lock()
	defer b.limitsMu.Unlock()
	b.limits[tool] = make(chan struct{}, n)
}

// acquire blocks until a concurrency slot for toolName is free or ctx is
// done, whichever comes first. release is a no-op if no limit is set.
func (b *Broker) acquire(ctx context.Context, toolName model.ToolName) (release func(), err error) {
	b.limitsMu.Lock()
	sem := b.limits[toolName]
	b.limitsMu.Unlock()
	if sem == nil {
		return func() {}, nil
	}

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, model.Wrap(model.CodeBackpressure, "timed out waiting for a tool concurrency slot", ctx.Err())
	}
}

// Invoke dispatches a single tool call (spec.md §4.4 contract). The
// returned map is already masked of credentials/secrets/PII and safe
// to log or hand to the Agent Runtime.
func (b *Broker) Invoke(ctx context.Context, toolName model.ToolName, params map[string]any, inv Invocation) (map[string]any, error) {
	if !toolName.IsValid() {
		return nil, model.NewError(model.CodeToolDenied, fmt.Sprintf("unknown tool %q", toolName))
	}

	allowed, err := b.acl.Allowed(ctx, inv.TenantID, inv.AgentID, toolName)
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "authorization check failed", err)
	}
	if !allowed {
		return nil, model.NewError(model.CodeToolDenied,
			fmt.Sprintf("agent %q is not authorized to use tool %q", inv.AgentID, toolName))
	}

	adapter, ok := b.adapters[toolName]
	if !ok {
		return nil, model.NewError(model.CodeToolDenied, fmt.Sprintf("no adapter registered for tool %q", toolName))
	}

	release, err := b.acquire(ctx, toolName)
	if err != nil {
		return nil, err
	}
	defer release()

	b.emitInvoked(inv, toolName)

	result, err := b.dispatch(ctx, adapter, params, inv)
	if err != nil {
		b.emitFailed(inv, toolName, err)
		return nil, err
	}

	masked := b.maskResult(result)
	b.emitDone(inv, toolName)
	return masked, nil
}

// dispatch runs adapter.Invoke, retrying idempotent tools on transient
// failure with exponential backoff (spec.md §4.3/§4.4).
func (b *Broker) dispatch(ctx context.Context, adapter Adapter, params map[string]any, inv Invocation) (map[string]any, error) {
	var lastErr error
	attempts := 1
	if adapter.Idempotent() {
		attempts = maxRetries + 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := adapter.Invoke(ctx, params, inv)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !adapter.Idempotent() || !isTransient(err) || attempt == attempts {
			break
		}

		select {
		case <-time.After(backoffDelay(attempt)):
		case <-ctx.Done():
			return nil, model.Wrap(model.CodeToolFailed, "tool invocation cancelled while retrying", ctx.Err())
		}
	}

	return nil, model.Wrap(model.CodeToolFailed, "tool invocation failed", lastErr)
}

// maskResult applies the masking service to every string value in the
// result map (spec.md §4.4's masking pass), one level deep and into
// any nested map/slice structure, so no tool result field carries a
// credential or secret past the Broker boundary.
func (b *Broker) maskResult(result map[string]any) map[string]any {
	if b.masker == nil {
		return result
	}
	maskValue(result, b.masker)
	return result
}

func maskValue(v any, m *masking.Service) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok {
				t[k] = m.Mask(s)
				continue
			}
			maskValue(val, m)
		}
	case []any:
		for i, val := range t {
			if s, ok := val.(string); ok {
				t[i] = m.Mask(s)
				continue
			}
			maskValue(val, m)
		}
	}
}

func (b *Broker) emitInvoked(inv Invocation, toolName model.ToolName) {
	if b.events != nil {
		b.events.ToolInvoked(inv.TenantID, inv.JobID, inv.AgentID, toolName)
	}
}

func (b *Broker) emitDone(inv Invocation, toolName model.ToolName) {
	if b.events != nil {
		b.events.ToolDone(inv.TenantID, inv.JobID, inv.AgentID, toolName)
	}
}

func (b *Broker) emitFailed(inv Invocation, toolName model.ToolName, err error) {
	if b.events != nil {
		b.events.ToolFailed(inv.TenantID, inv.JobID, inv.AgentID, toolName, err)
	}
}
