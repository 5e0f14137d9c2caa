package websocket

import (
	"encoding/json"
	"time"
)

// 消息类型
const (
	MessageTypeConnection = "connection"
	MessageTypeHeartbeat  = "heartbeat"
)

// Message is the envelope pushed to dashboard clients.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON encodes the message, stamping it when no timestamp is set.
func (m Message) ToJSON() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return json.Marshal(m)
}
