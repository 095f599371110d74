package eventws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	websocket "github.com/gofiber/contrib/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub fans application events out to the owning user's connections. Admin
// connections receive every event.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	staff      map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.ApplicationEvent
	done       chan struct{}
}

type conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Client struct {
	hub    *Hub
	conn   conn
	userID string
	role   string
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		staff:      make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.ApplicationEvent, 64),
		done:       make(chan struct{}),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, role string) *Client {
	return newClient(hub, conn, userID, role)
}

func newClient(hub *Hub, conn conn, userID string, role string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		send:   make(chan []byte, 32),
	}
}

// Run processes registrations and deliveries until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.staff = make(map[*Client]struct{})
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			if client.role == models.RoleAdmin {
				h.staff[client] = struct{}{}
			}
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Register reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishApplicationEvent queues an event without blocking the caller. Events
// are dropped when the queue is full.
func (h *Hub) PublishApplicationEvent(event models.ApplicationEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("event hub queue full, dropping event",
			"event_type", event.Type,
			"application_id", event.ApplicationID,
		)
	}
}

func (h *Hub) deliver(event models.ApplicationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("event hub encode", "error", err)
		return
	}

	owner := strconv.FormatInt(event.UserID, 10)
	delivered := make(map[*Client]struct{})
	for client := range h.clients[owner] {
		delivered[client] = struct{}{}
		h.offer(client, payload)
	}
	for client := range h.staff {
		if _, ok := delivered[client]; ok {
			continue
		}
		h.offer(client, payload)
	}
}

// offer drops clients whose buffer is full.
func (h *Hub) offer(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		delete(h.staff, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// ReadPump drains inbound frames so pongs and close frames are handled. The
// stream is server to client only.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

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

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
