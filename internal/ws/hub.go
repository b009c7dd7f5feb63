package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/openresq/emergency_dispatch/internal/bus"
	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// SnapshotSource provides the currently-active alerts for a shard, pushed to
// a client immediately on subscribe.
type SnapshotSource interface {
	ActiveAlerts(ctx context.Context, shard string) ([]*models.Alert, error)
}

// Hub is the explicit registry of live connections and their subscriptions.
// Entries are removed deterministically on disconnect. The hub holds a single
// bus subscription for all alert events and routes each one to the matching,
// entitled clients.
type Hub struct {
	snapshots SnapshotSource
	logger    *logrus.Logger
	cfg       *config.Config
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}

	cancelBus func()
}

func NewHub(eventBus bus.EventBus, snapshots SnapshotSource, logger *logrus.Logger, cfg *config.Config) (*Hub, error) {
	h := &Hub{
		snapshots: snapshots,
		logger:    logger,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens in-band; origin policy is enforced upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}

	cancel, err := eventBus.Subscribe("alert.*", h.relay)
	if err != nil {
		return nil, err
	}
	h.cancelBus = cancel
	return h, nil
}

// Close detaches the hub from the bus and disconnects every client.
func (h *Hub) Close() {
	h.cancelBus()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}

// HandleConnection upgrades an HTTP request and runs the connection's pumps.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := newClient(h, conn)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
}

// handleMessage processes one inbound client message.
func (h *Hub) handleMessage(ctx context.Context, client *Client, msg InboundMessage) {
	switch msg.Type {
	case MsgAuth:
		h.handleAuth(client, msg)
	case MsgSubscribe:
		h.handleSubscribe(ctx, client, msg)
	case MsgUnsubscribe:
		client.unsubscribe(msg.Topic)
		client.enqueue(encode(OutboundMessage{Type: MsgAck, Topic: msg.Topic}))
	default:
		client.enqueue(encode(OutboundMessage{Type: MsgError, Error: "unknown message type"}))
	}
}

func (h *Hub) handleAuth(client *Client, msg InboundMessage) {
	identity, role, err := parseToken(msg.Token, h.cfg.WSJWTSecret)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket authentication failed")
		client.enqueue(encode(OutboundMessage{Type: MsgError, Error: "authentication failed"}))
		return
	}
	if !client.authenticate(identity, role) {
		client.enqueue(encode(OutboundMessage{Type: MsgError, Error: "already authenticated"}))
		return
	}
	client.enqueue(encode(OutboundMessage{Type: MsgAck}))
}

// handleSubscribe registers the topic and immediately pushes the snapshot of
// matching active alerts. The snapshot is sent even when empty: clients must
// be able to tell "confirmed empty" from "no data yet".
func (h *Hub) handleSubscribe(ctx context.Context, client *Client, msg InboundMessage) {
	authed, identity, role := client.credentials()
	if !authed {
		client.enqueue(encode(OutboundMessage{Type: MsgError, Error: "authentication required"}))
		return
	}
	if msg.Topic == "" {
		client.enqueue(encode(OutboundMessage{Type: MsgError, Error: "topic is required"}))
		return
	}

	client.subscribe(msg.Topic)

	alerts, err := h.snapshots.ActiveAlerts(ctx, shardFromPattern(msg.Topic))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load snapshot for subscription")
		alerts = []*models.Alert{}
	}

	visible := make([]*models.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if visibleTo(alert, role, identity) {
			visible = append(visible, alert)
		}
	}
	client.enqueue(snapshotMessage(msg.Topic, visible))
}

// relay is the bus handler: one event in, a copy to every subscribed and
// entitled client. A client whose queue is full is dropped.
func (h *Hub) relay(topic string, payload []byte) {
	var event models.AlertEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.WithError(err).WithField("topic", topic).Error("Failed to decode bus event")
		return
	}
	if event.Alert == nil {
		return
	}

	data := encode(OutboundMessage{Type: MsgAlert, Topic: topic, Event: &event})

	h.mu.RLock()
	var stalled []*Client
	for client := range h.clients {
		authed, identity, role := client.credentials()
		if !authed || !client.subscribedTo(topic) {
			continue
		}
		if !visibleTo(event.Alert, role, identity) {
			continue
		}
		if !client.enqueue(data) {
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.logger.Warn("Dropping stalled WebSocket client")
		h.unregister(client)
	}
}

// visibleTo implements the role entitlement rules: a responder sees alerts
// targeted to it while `new`, alerts it personally accepted, and terminal
// alerts (historical record); a citizen sees its own alerts.
func visibleTo(alert *models.Alert, role, identity string) bool {
	switch role {
	case RoleResponder:
		if alert.Status == models.StatusNew {
			return alert.TargetedTo(identity)
		}
		if alert.AcceptedBy != nil && *alert.AcceptedBy == identity {
			return true
		}
		return alert.Status.IsTerminal()
	case RoleCitizen:
		return alert.ReporterID == identity
	}
	return false
}

// shardFromPattern extracts a concrete shard suffix from a subscription
// pattern, e.g. "alert.created.34:-119" -> "34:-119". Wildcard patterns
// snapshot across all shards.
func shardFromPattern(pattern string) string {
	idx := strings.LastIndex(pattern, ".")
	if idx < 0 {
		return ""
	}
	suffix := pattern[idx+1:]
	if suffix == "" || strings.Contains(suffix, "*") || !strings.Contains(suffix, ":") {
		return ""
	}
	return suffix
}
