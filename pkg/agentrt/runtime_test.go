package agentrt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

type stubBroker struct {
	responses []map[string]any
	errs      []error
	calls     int32
}

func (b *stubBroker) Invoke(ctx context.Context, _ model.ToolName, _ map[string]any, _ tool.Invocation) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := int(atomic.AddInt32(&b.calls, 1)) - 1
	if i < len(b.errs) && b.errs[i] != nil {
		return nil, b.errs[i]
	}
	if i < len(b.responses) {
		return b.responses[i], nil
	}
	return nil, nil
}

type recordingSink struct {
	started, ok, timeout int32
	errors                []model.Code
}

func (s *recordingSink) AgentStarted(string, string, string) { atomic.AddInt32(&s.started, 1) }
func (s *recordingSink) AgentOK(string, string, string)      { atomic.AddInt32(&s.ok, 1) }
func (s *recordingSink) AgentError(_, _, _ string, code model.Code, _ string) {
	s.errors = append(s.errors, code)
}
func (s *recordingSink) AgentTimeout(string, string, string) { atomic.AddInt32(&s.timeout, 1) }

func testAgent() *model.AgentDefinition {
	return &model.AgentDefinition{
		AgentID:      "a1",
		Class:        model.ClassIngest,
		SystemPrompt: "classify the report",
		OutputSchema: map[string]model.FieldType{"category": model.FieldTypeString},
		RequiredKeys: []string{"category"},
	}
}

func TestInvokeSucceeds(t *testing.T) {
	broker := &stubBroker{responses: []map[string]any{{"text": `{"category":"fire"}`}}}
	sink := &recordingSink{}
	rt := New(broker, sink)

	inv := rt.Invoke(context.Background(), Request{
		Agent:    testAgent(),
		RawInput: "a building is on fire",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(time.Minute),
	})

	require.Equal(t, model.InvocationOK, inv.Status)
	assert.Equal(t, "fire", inv.Output["category"])
	assert.EqualValues(t, 1, sink.started)
	assert.EqualValues(t, 1, sink.ok)
}

func TestInvokeRepairsOnceOnBadJSON(t *testing.T) {
	broker := &stubBroker{responses: []map[string]any{
		{"text": "not json"},
		{"text": `{"category":"flood"}`},
	}}
	rt := New(broker, &recordingSink{})

	inv := rt.Invoke(context.Background(), Request{
		Agent: testAgent(), RawInput: "water everywhere",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(time.Minute),
	})

	require.Equal(t, model.InvocationOK, inv.Status)
	assert.Equal(t, "flood", inv.Output["category"])
	assert.EqualValues(t, 2, broker.calls)
}

func TestInvokeFailsAfterRepairStillBad(t *testing.T) {
	broker := &stubBroker{responses: []map[string]any{
		{"text": "still not json"},
		{"text": "still not json either"},
	}}
	sink := &recordingSink{}
	rt := New(broker, sink)

	inv := rt.Invoke(context.Background(), Request{
		Agent: testAgent(), RawInput: "garbled",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(time.Minute),
	})

	require.Equal(t, model.InvocationError, inv.Status)
	assert.Equal(t, model.CodeParseError, inv.ErrorCode)
	require.Len(t, sink.errors, 1)
	assert.Equal(t, model.CodeParseError, sink.errors[0])
}

func TestInvokeRejectsMissingRequiredKey(t *testing.T) {
	broker := &stubBroker{responses: []map[string]any{{"text": `{"other":"x"}`}}}
	rt := New(broker, &recordingSink{})

	inv := rt.Invoke(context.Background(), Request{
		Agent: testAgent(), RawInput: "x",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(time.Minute),
	})

	require.Equal(t, model.InvocationError, inv.Status)
	assert.Equal(t, model.CodeOutputValidation, inv.ErrorCode)
}

func TestInvokeRejectsUndeclaredKey(t *testing.T) {
	broker := &stubBroker{responses: []map[string]any{{"text": `{"category":"fire","extra":"nope"}`}}}
	rt := New(broker, &recordingSink{})

	inv := rt.Invoke(context.Background(), Request{
		Agent: testAgent(), RawInput: "x",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(time.Minute),
	})

	require.Equal(t, model.InvocationError, inv.Status)
	assert.Equal(t, model.CodeOutputValidation, inv.ErrorCode)
}

func TestInvokeTimesOutWhenDeadlinePasses(t *testing.T) {
	broker := &stubBroker{} // never returns data quickly; Invoke only called once and ctx already expired
	sink := &recordingSink{}
	rt := New(broker, sink)

	inv := rt.Invoke(context.Background(), Request{
		Agent: testAgent(), RawInput: "x",
		TenantID: "t1", JobID: "j1", Deadline: time.Now().Add(-time.Second),
	})

	require.Equal(t, model.InvocationTimeout, inv.Status)
	assert.EqualValues(t, 1, sink.timeout)
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	agent := testAgent()
	parent := map[string]any{"b": 2, "a": 1}

	first := buildPrompt(agent, "raw", parent)
	second := buildPrompt(agent, "raw", parent)
	assert.Equal(t, first, second)
}

func TestValidateOutputEnforcesMaxKeys(t *testing.T) {
	agent := &model.AgentDefinition{
		AgentID: "a1",
		OutputSchema: map[string]model.FieldType{
			"k1": model.FieldTypeString, "k2": model.FieldTypeString, "k3": model.FieldTypeString,
			"k4": model.FieldTypeString, "k5": model.FieldTypeString, "k6": model.FieldTypeString,
		},
	}
	out := map[string]any{"k1": "", "k2": "", "k3": "", "k4": "", "k5": "", "k6": ""}

	err := validateOutput(agent, out)
	require.Error(t, err)
	code, _ := model.CodeOf(err)
	assert.Equal(t, model.CodeOutputValidation, code)
}
