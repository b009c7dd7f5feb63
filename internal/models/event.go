package models

// Event kinds carried in AlertEvent payloads on the bus.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventTimeout = "timeout"
	EventDeleted = "deleted"
)

// AlertEvent is the bus payload for every alert state change. The topic
// encodes kind and shard as well; the payload repeats the kind so consumers
// subscribed with a wildcard need not parse topic names.
type AlertEvent struct {
	Kind  string `json:"kind"`
	Alert *Alert `json:"alert"`
}
