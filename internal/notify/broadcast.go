package notify

import (
	"context"
	"errors"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
)

// 实时推送消息类型
const (
	MessageTypeAlert         = "alert"
	MessageTypeAlertResolved = "alert_resolved"
)

// Broadcaster pushes a typed message to every connected real-time client.
// The websocket hub implements it.
type Broadcaster interface {
	Broadcast(msgType string, data map[string]interface{}) error
}

// BroadcastChannel delivers alerts to dashboard clients.
type BroadcastChannel struct {
	b Broadcaster
}

func NewBroadcastChannel(b Broadcaster) *BroadcastChannel {
	return &BroadcastChannel{b: b}
}

func (c *BroadcastChannel) Name() string { return alert.ChannelBroadcast }

func (c *BroadcastChannel) Send(ctx context.Context, a alert.Alert) error {
	if c.b == nil {
		return errors.New("broadcast channel has no broadcaster")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p := newPayload(a)
	msgType := MessageTypeAlert
	if a.Status == alert.StatusResolved {
		msgType = MessageTypeAlertResolved
	}
	return c.b.Broadcast(msgType, map[string]interface{}{
		"event": p.Event,
		"title": p.Title,
		"alert": p.Alert,
	})
}
