package ws

import (
	"encoding/json"

	"github.com/openresq/emergency_dispatch/internal/models"
)

// Roles a connection can authenticate as. The role decides which alerts the
// connection may legally receive.
const (
	RoleCitizen   = "citizen"
	RoleResponder = "responder"
)

// Inbound message types.
const (
	MsgAuth        = "auth"
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
)

// Outbound message types.
const (
	MsgAck      = "ack"
	MsgSnapshot = "snapshot"
	MsgAlert    = "alert"
	MsgError    = "error"
)

// InboundMessage is the envelope for every client-to-server message.
type InboundMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}

// OutboundMessage is the envelope for every server-to-client message.
// Snapshot messages always carry Alerts, an empty array when nothing matches,
// so clients can distinguish "no data yet" from "confirmed empty".
type OutboundMessage struct {
	Type   string             `json:"type"`
	Topic  string             `json:"topic,omitempty"`
	Alerts []*models.Alert    `json:"alerts,omitempty"`
	Event  *models.AlertEvent `json:"event,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func encode(msg OutboundMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		// Outbound messages are built from already-marshaled-safe types.
		return []byte(`{"type":"error","error":"internal encoding failure"}`)
	}
	return data
}

func snapshotMessage(topic string, alerts []*models.Alert) []byte {
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	msg := OutboundMessage{Type: MsgSnapshot, Topic: topic, Alerts: alerts}
	// json omits nil slices; an empty snapshot must still serialize the array.
	data, err := json.Marshal(struct {
		Type   string          `json:"type"`
		Topic  string          `json:"topic"`
		Alerts []*models.Alert `json:"alerts"`
	}{msg.Type, msg.Topic, msg.Alerts})
	if err != nil {
		return []byte(`{"type":"error","error":"internal encoding failure"}`)
	}
	return data
}
