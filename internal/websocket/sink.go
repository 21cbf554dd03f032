package websocket

import "github.com/rmia46/roam-mc-server-manager/internal/server"

// HubSink forwards supervisor events to every stream client.
type HubSink struct {
	hub *Hub
}

func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) HandleEvent(e server.Event) {
	s.hub.Publish(&Message{
		Type:      string(e.Type),
		Payload:   e.Payload(),
		Timestamp: e.Time,
	})
}
