package statusbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/model"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("user-1", "")
	defer sub.Close()

	bus.Publish(model.StatusEvent{JobID: "job-1", UserID: "user-1", Kind: model.EventAgentStarted})

	select {
	case evt := <-sub.Events:
		assert.Equal(t, "job-1", evt.JobID)
		assert.EqualValues(t, 1, evt.Sequence)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFiltersByJobID(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("user-1", "job-a")
	defer sub.Close()

	bus.Publish(model.StatusEvent{JobID: "job-b", UserID: "user-1", Kind: model.EventAgentStarted})
	bus.Publish(model.StatusEvent{JobID: "job-a", UserID: "user-1", Kind: model.EventAgentOK})

	select {
	case evt := <-sub.Events:
		assert.Equal(t, "job-a", evt.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-sub.Events:
		t.Fatalf("unexpected second event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotDeliverToOtherUsers(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("user-1", "")
	defer sub.Close()

	bus.Publish(model.StatusEvent{JobID: "job-1", UserID: "user-2", Kind: model.EventAgentStarted})

	select {
	case evt := <-sub.Events:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSequenceIsMonotonicPerJob(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("user-1", "")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(model.StatusEvent{JobID: "job-1", UserID: "user-1", Kind: model.EventToolInvoked})
	}

	var last uint64
	for i := 0; i < 5; i++ {
		evt := <-sub.Events
		require.Greater(t, evt.Sequence, last)
		last = evt.Sequence
	}
}

func TestCloseUnregistersSubscription(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("user-1", "")
	sub.Close()

	bus.Publish(model.StatusEvent{JobID: "job-1", UserID: "user-1", Kind: model.EventAgentStarted})

	select {
	case evt := <-sub.Events:
		t.Fatalf("unexpected event after close: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

type mapUsers map[string]string

func (m mapUsers) UserForJob(jobID string) (string, bool) {
	u, ok := m[jobID]
	return u, ok
}

func TestSinkAddressesEventsToJobOwner(t *testing.T) {
	bus := New()
	sink := NewSink(bus, mapUsers{"job-1": "user-1"})
	sub := bus.Subscribe("user-1", "")
	defer sub.Close()

	sink.AgentStarted("tenant-1", "job-1", "agent-1")

	evt := <-sub.Events
	assert.Equal(t, model.EventAgentStarted, evt.Kind)
	assert.Equal(t, "agent-1", evt.AgentID)
}

func TestSinkSkipsUnknownJob(t *testing.T) {
	bus := New()
	sink := NewSink(bus, mapUsers{})
	sub := bus.Subscribe("user-1", "")
	defer sub.Close()

	sink.AgentStarted("tenant-1", "job-unknown", "agent-1")

	select {
	case evt := <-sub.Events:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
