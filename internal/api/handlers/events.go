package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rmia46/roam-mc-server-manager/internal/api/middleware"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
	ws "github.com/rmia46/roam-mc-server-manager/internal/websocket"
)

// EventsHandler streams supervisor events over WebSocket
type EventsHandler struct {
	hub            *ws.Hub
	supervisor     *server.Supervisor
	allowedOrigins []string
}

func NewEventsHandler(hub *ws.Hub, supervisor *server.Supervisor, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{hub: hub, supervisor: supervisor, allowedOrigins: allowedOrigins}
}

// Stream upgrades the connection and relays events until the client leaves.
// The current status and player count are sent first.
func (h *EventsHandler) Stream(c *gin.Context) {
	upgrader := buildUpgrader(h.allowedOrigins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Events] Failed to upgrade WebSocket: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}

	client := ws.NewClient(h.hub, conn)
	client.SendMessage(string(server.EventStatusUpdate), h.supervisor.Status().String())
	client.SendMessage(string(server.EventPlayerUpdate), h.supervisor.PlayerCount())

	h.hub.Serve(client)
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}
