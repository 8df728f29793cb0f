package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket clients receive JSON text frames shaped {type, ts, data}.  The
// first frame after connecting is "state_init" carrying a full status
// snapshot; after that the daemon pushes servo_moved, led_changed,
// calibration_changed and motion as they happen.

const (
	msgStateInit          = "state_init"
	msgServoMoved         = "servo_moved"
	msgLEDChanged         = "led_changed"
	msgCalibrationChanged = "calibration_changed"
	msgMotion             = "motion"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsEnvelope is the wire format for every frame.
type wsEnvelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func encodeFrame(typ string, data any, at time.Time) ([]byte, error) {
	at = at.UTC()
	return json.Marshal(wsEnvelope{Type: typ, Ts: &at, Data: data})
}

// Hub fans frames out to connected clients.  A client whose queue is full
// is dropped rather than allowed to stall everyone else.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}
	sendBuf int
}

// NewHub constructs a hub.  Call Run to start it.
func NewHub(logger *slog.Logger, sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 32
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes registrations and broadcasts until ctx is canceled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.remove(c, "slow_client")
			}
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		h.dropLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// dropLocked forgets c and closes its queue, which stops its writer.
// h.mu must be held.
func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	close(c.send)
}

// Broadcast encodes data under typ and queues it for every client.  It never
// blocks; when the hub is backed up the frame is dropped.
func (h *Hub) Broadcast(typ string, data any) {
	msg, err := encodeFrame(typ, data, time.Now())
	if err != nil {
		h.logger.Warn("ws marshal failed", "type", typ, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws broadcast queue full, dropping message", "type", typ)
	}
}

// Client is one websocket connection.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

func newClient(h *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, h.sendBuf), remoteAddr: remoteAddr}
}

// writePump drains the send queue onto the connection and keeps it alive
// with pings.  It exits when the queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-way.  A read error
// means the peer went away.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			select {
			case c.hub.unregister <- c:
			default:
				// Hub is gone or backed up; the next broadcast evicts us.
			}
			return
		}
	}
}

func (c *Client) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.hub.logger.Debug("ws closed", "remote_addr", c.remoteAddr, "op", op, "code", ce.Code)
		return
	}
	c.hub.logger.Debug("ws error", "remote_addr", c.remoteAddr, "op", op, "error", err)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection, registers it and queues state_init.
// The pumps outlive the request, so they do not use its context.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, user User) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}
	c := newClient(s.hub, conn, r.RemoteAddr)
	if frame, err := encodeFrame(msgStateInit, s.status(), time.Now()); err == nil {
		c.send <- frame
	}
	s.hub.register <- c
	go c.writePump()
	go c.readPump()
}
