package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"chat-window/internal/middleware"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	// dev server, any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.reserveSlot() {
		h.metrics.Rejected.Inc()
		h.logger.Warn("rejected connection, max clients reached", zap.Int("max", h.opts.MaxClients))
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.releaseSlot()
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, middleware.UserID(r))
	client.reserved = true
	if err := h.Register(client); err != nil {
		h.releaseSlot()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// Health reports liveness for load balancers and the CLI.
func (h *Hub) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"clients":  h.ClientCount(),
		"messages": h.store.Len(),
	}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
