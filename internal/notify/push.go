package notify

import (
	"context"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/ws"
)

// PushChannel fans an alert out to connected websocket dashboards.
type PushChannel struct {
	hub *ws.Hub
}

func NewPushChannel(hub *ws.Hub) *PushChannel {
	return &PushChannel{hub: hub}
}

func (c *PushChannel) Type() string { return "push" }

func (c *PushChannel) Send(_ context.Context, a models.Alert, _ []string) error {
	c.hub.Broadcast("alert", a)
	return nil
}
