package remote

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
	maxClients = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The server authenticates by bearer token, not origin; browser
	// clients are not a target.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamClient is one connected subscriber, scoped to a single owner.
type streamClient struct {
	ownerID string
	conn    *websocket.Conn
	send    chan []byte
}

// Hub fans newly inserted rows out to each owner's connected devices.
type Hub struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	log     zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		log:     log,
	}
}

// Broadcast delivers a row to every subscriber of its owner. Slow
// subscribers are disconnected rather than allowed to block the hub.
func (h *Hub) Broadcast(row Row) {
	data, err := json.Marshal(row)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal broadcast row")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.ownerID != row.OwnerID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("owner", c.ownerID).Msg("dropping slow stream client")
			go h.remove(c)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxClients {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// serveStream upgrades the request and pumps inserts to the client
// until it disconnects.
func (h *Hub) serveStream(w http.ResponseWriter, r *http.Request, ownerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &streamClient{ownerID: ownerID, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// readPump discards inbound messages (the stream is one-way) and keeps
// the pong deadline fresh.
func (h *Hub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
