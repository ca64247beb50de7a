package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Event is the structured message sent to WebSocket clients. Data carries
// the raw notification payload from the stores.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
}

// EventSequence assigns monotonic IDs so clients can detect gaps after a
// reconnect and fall back to polling the REST API.
type EventSequence struct {
	counter atomic.Uint64
}

// Next returns the next sequence number.
func (es *EventSequence) Next() uint64 {
	return es.counter.Add(1)
}
