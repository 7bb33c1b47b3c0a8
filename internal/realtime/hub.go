package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"opsboard-backend/internal/metrics"
	"opsboard-backend/internal/models"
)

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn      *websocket.Conn
	projectID *int
	send      chan []byte
}

// wants reports whether the client subscribed to the event's project.
// A client without a project filter receives everything.
func (c *client) wants(ev models.TransitionEvent) bool {
	if c.projectID == nil {
		return true
	}
	return ev.ProjectID != nil && *ev.ProjectID == *c.projectID
}

// Hub pushes committed transfer status changes to websocket subscribers.
type Hub struct {
	clients    map[*client]bool
	clientsMux sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Publish queues ev for every matching subscriber. A subscriber whose
// buffer is full is disconnected instead of blocking the caller.
func (h *Hub) Publish(ctx context.Context, ev models.TransitionEvent) {
	payload, err := json.Marshal(struct {
		Type  string                 `json:"type"`
		Event models.TransitionEvent `json:"event"`
	}{Type: "transfer.status_changed", Event: ev})
	if err != nil {
		log.Printf("[Realtime] Failed to encode event: %v", err)
		return
	}

	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			log.Printf("[Realtime] Dropping slow subscriber")
			h.removeLocked(c)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.clientsMux.Lock()
	h.clients[c] = true
	h.clientsMux.Unlock()
	metrics.RealtimeSubscribers.Inc()
}

func (h *Hub) remove(c *client) {
	h.clientsMux.Lock()
	h.removeLocked(c)
	h.clientsMux.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.RealtimeSubscribers.Dec()
}

// ServeWS upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, projectID *int) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Realtime] WebSocket upgrade error:", err)
		return
	}

	c := &client{conn: conn, projectID: projectID, send: make(chan []byte, sendBuffer)}
	h.add(c)

	go c.writePump()
	c.readPump()
	h.remove(c)
}

// readPump discards inbound messages and keeps the read deadline fresh.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
