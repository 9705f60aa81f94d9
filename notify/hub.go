package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stockwatch/router"
)

// Hub broadcasts routed events to connected websocket subscribers. Clients
// that cannot keep up are dropped rather than blocking the broadcast loop.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 1024),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run owns the client set. It must be running before the hub is used as a
// notifier.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case b := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- b:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Notify implements router.Notifier by broadcasting the envelope to every
// connected subscriber.
func (h *Hub) Notify(_ context.Context, env router.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- b:
	default:
		h.log.Warnw("Broadcast buffer full, dropping notification", "envelope_id", env.ID)
	}

	return nil
}

// ServeHTTP upgrades the request and registers the connection as a
// subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- c:
		go c.writePump(h)
	case <-h.done:
		conn.Close()
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump(h *Hub) {
	defer c.conn.Close()

	for b := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
			return
		}
	}
}
