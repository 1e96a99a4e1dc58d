package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/masking"
	"github.com/fieldstack/orchestrator/pkg/model"
)

type allowAllChecker struct{ denyTool model.ToolName }

func (c allowAllChecker) Allowed(_ context.Context, _, _ string, toolName model.ToolName) (bool, error) {
	return toolName != c.denyTool, nil
}

type recordingSink struct {
	invoked, done, failed int32
}

func (s *recordingSink) ToolInvoked(string, string, string, model.ToolName) { atomic.AddInt32(&s.invoked, 1) }
func (s *recordingSink) ToolDone(string, string, string, model.ToolName)    { atomic.AddInt32(&s.done, 1) }
func (s *recordingSink) ToolFailed(string, string, string, model.ToolName, error) {
	atomic.AddInt32(&s.failed, 1)
}

type stubAdapter struct {
	idempotent  bool
	failCount   int
	calls       int32
	result      map[string]any
	failForever bool
}

func (a *stubAdapter) Idempotent() bool { return a.idempotent }

func (a *stubAdapter) Invoke(_ context.Context, _ map[string]any, _ Invocation) (map[string]any, error) {
	n := atomic.AddInt32(&a.calls, 1)
	if a.failForever || int(n) <= a.failCount {
		return nil, model.NewError(model.CodeToolFailed, "transient backend error")
	}
	return a.result, nil
}

func newTestBroker(adapter Adapter, checker AuthChecker, sink *recordingSink) *Broker {
	return NewBroker(map[model.ToolName]Adapter{model.ToolLLM: adapter}, checker, sink, masking.NewService(&masking.SensitiveKeyMasker{}))
}

func TestBrokerInvokeSucceeds(t *testing.T) {
	adapter := &stubAdapter{result: map[string]any{"text": "hello"}}
	sink := &recordingSink{}
	b := newTestBroker(adapter, allowAllChecker{}, sink)

	out, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"])
	assert.EqualValues(t, 1, sink.invoked)
	assert.EqualValues(t, 1, sink.done)
	assert.EqualValues(t, 0, sink.failed)
}

func TestBrokerInvokeDeniedByACL(t *testing.T) {
	adapter := &stubAdapter{result: map[string]any{}}
	b := newTestBroker(adapter, allowAllChecker{denyTool: model.ToolLLM}, &recordingSink{})

	_, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.Error(t, err)
	code, ok := model.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, model.CodeToolDenied, code)
	assert.EqualValues(t, 0, adapter.calls)
}

func TestBrokerRetriesIdempotentToolOnTransientFailure(t *testing.T) {
	adapter := &stubAdapter{idempotent: true, failCount: 2, result: map[string]any{"ok": true}}
	b := newTestBroker(adapter, allowAllChecker{}, &recordingSink{})

	out, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
	assert.EqualValues(t, 3, adapter.calls)
}

func TestBrokerDoesNotRetryNonIdempotentTool(t *testing.T) {
	adapter := &stubAdapter{idempotent: false, failForever: true}
	sink := &recordingSink{}
	b := newTestBroker(adapter, allowAllChecker{}, sink)

	_, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.Error(t, err)
	assert.EqualValues(t, 1, adapter.calls)
	assert.EqualValues(t, 1, sink.failed)
}

func TestBrokerExhaustsRetriesAndReturnsError(t *testing.T) {
	adapter := &stubAdapter{idempotent: true, failForever: true}
	b := newTestBroker(adapter, allowAllChecker{}, &recordingSink{})

	_, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.Error(t, err)
	assert.EqualValues(t, maxRetries+1, adapter.calls)
	require.True(t, errors.Is(err, err)) // sanity: err is non-nil and comparable
}

func TestBrokerMasksResultBeforeReturning(t *testing.T) {
	adapter := &stubAdapter{result: map[string]any{"api_key": "sk-secretvalue1234567890", "note": "fine"}}
	b := newTestBroker(adapter, allowAllChecker{}, &recordingSink{})

	out, err := b.Invoke(context.Background(), model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.NoError(t, err)
	assert.NotContains(t, out["api_key"], "sk-secretvalue1234567890")
	assert.Equal(t, "fine", out["note"])
}

func TestBrokerConcurrencyLimitBlocksUntilSlotFreesOrDeadline(t *testing.T) {
	adapter := &stubAdapter{result: map[string]any{"ok": true}}
	b := newTestBroker(adapter, allowAllChecker{}, &recordingSink{})
	b.SetConcurrencyLimit(model.ToolLLM, 1)

	// Pre-fill the single slot so a subsequent Invoke must wait for ctx.
	sem := b.limits[model.ToolLLM]
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Invoke(ctx, model.ToolLLM, nil, Invocation{TenantID: "t1", AgentID: "a1", JobID: "j1"})
	require.Error(t, err)
	code, ok := model.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, model.CodeBackpressure, code)
	assert.EqualValues(t, 0, adapter.calls)
}

func TestBrokerRejectsUnknownTool(t *testing.T) {
	b := newTestBroker(&stubAdapter{}, allowAllChecker{}, &recordingSink{})
	_, err := b.Invoke(context.Background(), model.ToolName("not_a_real_tool"), nil, Invocation{TenantID: "t1", AgentID: "a1"})
	require.Error(t, err)
	code, _ := model.CodeOf(err)
	assert.Equal(t, model.CodeToolDenied, code)
}
