// Package statusbus fans out per-job StatusEvents to subscribers keyed
// by user identity. Delivery is best-effort, in-process only (spec.md
// §4.6 Non-goals: "exactly-once delivery... never required"); the
// AgentInvocation/Job rows remain the durable audit trail a subscriber
// reconciles against after a missed event.
package statusbus

import (
	"sync"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// subscriberBuffer is the channel depth for one subscription. A slow
// subscriber that falls behind this many events has its oldest events
// dropped rather than blocking the publisher (best-effort semantics).
const subscriberBuffer = 256

// Bus is a single process-wide fan-out point. One Bus instance is
// shared by the Scheduler, Agent Runtime and Tool Broker.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{} // user_id -> active subscriptions
	seq  map[string]*uint64                    // job_id -> monotonic sequence counter
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[string]map[*subscription]struct{}),
		seq:  make(map[string]*uint64),
	}
}

type subscription struct {
	userID string
	jobID  string // empty means "all jobs for this user"
	ch     chan model.StatusEvent
}

// Subscription is the handle returned to a caller of Subscribe.
type Subscription struct {
	Events <-chan model.StatusEvent
	sub    *subscription
	bus    *Bus
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if set, ok := s.bus.subs[s.sub.userID]; ok {
		delete(set, s.sub)
		if len(set) == 0 {
			delete(s.bus.subs, s.sub.userID)
		}
	}
}

// Subscribe registers interest in events for userID, optionally
// filtered to a single jobID (spec.md §4.6 "subscribe-by-user_id
// (optional job_id filter)").
func (b *Bus) Subscribe(userID, jobID string) *Subscription {
	sub := &subscription{userID: userID, jobID: jobID, ch: make(chan model.StatusEvent, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	b.mu.Unlock()

	return &Subscription{Events: sub.ch, sub: sub, bus: b}
}

// nextSequence returns the next monotonic sequence number for jobID
// (spec.md §3 StatusEvent.sequence "strictly increasing per job").
func (b *Bus) nextSequence(jobID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	counter, ok := b.seq[jobID]
	if !ok {
		counter = new(uint64)
		b.seq[jobID] = counter
	}
	*counter++
	return *counter
}

// Publish stamps evt with the next sequence number for its job and
// fans it out to every matching subscription for evt.UserID. A full
// subscriber channel drops the event rather than blocking (best-
// effort, at-most-once).
func (b *Bus) Publish(evt model.StatusEvent) {
	evt.Sequence = b.nextSequence(evt.JobID)
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.Lock()
	subs := b.subs[evt.UserID]
	targets := make([]*subscription, 0, len(subs))
	for sub := range subs {
		if sub.jobID == "" || sub.jobID == evt.JobID {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- evt:
		default:
			// subscriber is behind; drop rather than block the publisher
		}
	}
}

// ForgetJob releases the sequence counter for a finished job so the
// Bus does not grow unboundedly across the process lifetime.
func (b *Bus) ForgetJob(jobID string) {
	b.mu.Lock()
	delete(b.seq, jobID)
	b.mu.Unlock()
}
