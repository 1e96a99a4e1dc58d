package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/statusbus"
)

// ConnectionManager upgrades and tracks WebSocket connections, one per
// process (pod), fanning statusbus events out to whichever connections
// subscribed for them. Adapted from the reference's
// events.ConnectionManager: the channel/LISTEN machinery is gone
// because statusbus.Bus already does in-process fan-out and there is no
// cross-pod NOTIFY to bridge.
type ConnectionManager struct {
	bus *statusbus.Bus

	mu          sync.RWMutex
	connections map[string]*Connection

	writeTimeout time.Duration
}

// Connection is a single WebSocket client, scoped to one authenticated
// user. subscriptions is only ever touched from HandleConnection's
// single read-loop goroutine and its deferred cleanup, so it needs no
// lock of its own.
type Connection struct {
	ID            string
	userID        string
	conn          *websocket.Conn
	subscriptions map[string]*statusbus.Subscription // job_id ("" = all) -> subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionManager constructs a ConnectionManager backed by bus.
func NewConnectionManager(bus *statusbus.Bus, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		bus:          bus,
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// ActiveConnections reports the number of live WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// HandleConnection manages the lifecycle of one WebSocket connection for
// userID. Blocks until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, userID string, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		userID:        userID,
		conn:          conn,
		subscriptions: make(map[string]*statusbus.Subscription),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendControl(c, serverMessage{Type: "connection.established"})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "connection_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if _, already := c.subscriptions[msg.JobID]; already {
			return
		}
		sub := m.bus.Subscribe(c.userID, msg.JobID)
		c.subscriptions[msg.JobID] = sub
		go m.forward(c, msg.JobID, sub)
		m.sendControl(c, serverMessage{Type: "subscription.confirmed", JobID: msg.JobID})

	case "unsubscribe":
		if sub, ok := c.subscriptions[msg.JobID]; ok {
			sub.Close()
			delete(c.subscriptions, msg.JobID)
		}

	case "ping":
		m.sendControl(c, serverMessage{Type: "pong"})

	default:
		m.sendControl(c, serverMessage{Type: "error", Error: "unknown action: " + msg.Action})
	}
}

// forward relays statusbus events for one subscription to the client
// until the subscription or the connection closes.
func (m *ConnectionManager) forward(c *Connection, jobID string, sub *statusbus.Subscription) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			m.sendEvent(c, evt)
		}
	}
}

func (m *ConnectionManager) sendEvent(c *Connection, evt model.StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("failed to marshal status event", "connection_id", c.ID, "error", err)
		return
	}
	m.send(c, data)
}

func (m *ConnectionManager) sendControl(c *Connection, msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	m.send(c, data)
}

func (m *ConnectionManager) send(c *Connection, data []byte) {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("failed to write to websocket client", "connection_id", c.ID, "error", err)
	}
}

func (m *ConnectionManager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregister(c *Connection) {
	for _, sub := range c.subscriptions {
		sub.Close()
	}
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
