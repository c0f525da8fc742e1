// Package live pushes bracket updates to websocket subscribers, one room per
// tournament.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/duelkit/pkg/logger"
	"github.com/okian/duelkit/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	publishBuffer  = 64
)

// Message types.
const (
	TypeBracket   = "bracket"
	TypeCompleted = "completed"
)

// Message is one frame sent to subscribers.
type Message struct {
	Type    string      `json:"type"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload"`
}

// Room returns the room key of a tournament.
func Room(guildID uint64, name string) string {
	return strconv.FormatUint(guildID, 10) + "/" + name
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

type registration struct {
	client  *client
	initial []byte
}

type envelope struct {
	room string
	data []byte
}

// Hub fans messages out to the clients of a room. Only the Run goroutine
// touches rooms and client send channels.
type Hub struct {
	rooms      map[string]map[*client]struct{}
	register   chan registration
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}
	count      atomic.Int64
	upgrader   websocket.Upgrader
	logger     logger.Logger
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*client]struct{}),
		register:   make(chan registration),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, publishBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("live")
	}
	return h
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int { return int(h.count.Load()) }

// Run dispatches registrations and messages until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					h.drop(c)
				}
			}
			return

		case reg := <-h.register:
			c := reg.client
			if _, ok := h.rooms[c.room]; !ok {
				h.rooms[c.room] = make(map[*client]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
			h.setCount(h.count.Load() + 1)
			if reg.initial != nil {
				c.send <- reg.initial
			}
			h.logger.Debug(ctx, "subscriber joined",
				logger.String("room", c.room),
				logger.Int("room_size", len(h.rooms[c.room])),
			)

		case c := <-h.unregister:
			if _, ok := h.rooms[c.room][c]; ok {
				h.drop(c)
			}

		case env := <-h.broadcast:
			for c := range h.rooms[env.room] {
				select {
				case c.send <- env.data:
				default:
					h.logger.Warn(ctx, "subscriber too slow; disconnecting", logger.String("room", env.room))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.rooms[c.room], c)
	if len(h.rooms[c.room]) == 0 {
		delete(h.rooms, c.room)
	}
	close(c.send)
	h.setCount(h.count.Load() - 1)
}

func (h *Hub) setCount(n int64) {
	h.count.Store(n)
	metrics.UpdateLiveSubscribers(int(n))
}

// Publish queues msg for every client of msg.Room. It never blocks; when the
// hub is saturated the message is dropped.
func (h *Hub) Publish(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, "encode live message", logger.String("room", msg.Room), logger.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{room: msg.Room, data: data}:
	case <-h.done:
	default:
		h.logger.Warn(ctx, "live hub saturated; dropping update", logger.String("room", msg.Room))
	}
}

// Serve upgrades the request and subscribes it to room. initial, when not
// nil, is the first frame the client receives.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string, initial *Message) {
	var first []byte
	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			http.Error(w, "encode snapshot", http.StatusInternalServerError)
			return
		}
		first = data
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.String("room", room), logger.Error(err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: room}
	select {
	case h.register <- registration{client: c, initial: first}:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for the peer going away; inbound frames are ignored.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug(context.Background(), "subscriber read failed", logger.String("room", c.room), logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
