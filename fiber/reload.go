package fiber

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/slinkity/slinkity/store"
)

const (
	// ReloadPath is where browsers connect for live reload.
	ReloadPath = "/_slinkity/reload"
	// ReloadChannel is the PubSub channel rebuild notifications travel on.
	ReloadChannel = "slinkity:reload"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ReloadMessage is sent to browsers after a rebuild.
type ReloadMessage struct {
	// Type is "reload" or "error".
	Type    string   `json:"type"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message,omitempty"`
}

// PublishReload announces a rebuild on ps.
func PublishReload(ctx context.Context, ps store.PubSub, msg ReloadMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ps.Publish(ctx, ReloadChannel, data)
}

type reloadClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ReloadHub fans reload messages out to connected browsers.
type ReloadHub struct {
	mu      sync.RWMutex
	clients map[*reloadClient]struct{}
	logger  *slog.Logger
}

// NewReloadHub creates an empty hub.
func NewReloadHub(logger *slog.Logger) *ReloadHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadHub{clients: make(map[*reloadClient]struct{}), logger: logger}
}

// Listen forwards every message published on ReloadChannel until the
// returned cancel func is called.
func (h *ReloadHub) Listen(ctx context.Context, ps store.PubSub) (func(), error) {
	return ps.Subscribe(ctx, ReloadChannel, h.Broadcast)
}

// Broadcast queues msg for every client. Clients with a full queue miss it.
func (h *ReloadHub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("reload client queue full, dropping message")
		}
	}
}

// ClientCount returns the number of connected browsers.
func (h *ReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler upgrades ReloadPath requests to websockets.
func (h *ReloadHub) Handler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		c := &reloadClient{conn: conn, send: make(chan []byte, 16)}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		done := make(chan struct{})
		go h.writePump(c, done)
		h.readPump(c)

		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(done)
	})
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}

// readPump only watches for the connection closing; browsers never send.
func (h *ReloadHub) readPump(c *reloadClient) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ReloadHub) writePump(c *reloadClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReloadScript is the client half of live reload, injected into every page
// in development.
const ReloadScript = `<script type="module">
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + ReloadPath + `");
ws.onmessage = (e) => {
  const msg = JSON.parse(e.data);
  if (msg.type === "reload") location.reload();
  else if (msg.type === "error") console.error("[slinkity]", msg.message);
};
</script>`
