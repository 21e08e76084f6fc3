package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/gesturecall/internal/call"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is pushed to socket clients on connect and on every call
// transition.
type EventMessage struct {
	Type    string       `json:"type"`
	Session call.Session `json:"session"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler pushes call transitions to WebSocket clients.
type EventsHandler struct {
	machine     *call.Machine
	log         *logrus.Entry
	unsubscribe func()

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewEventsHandler subscribes to m. Close unsubscribes.
func NewEventsHandler(m *call.Machine, log *logrus.Entry) *EventsHandler {
	h := &EventsHandler{
		machine: m,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
	h.unsubscribe = m.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientSend)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if msg, err := encodeEvent("snapshot", h.machine.Snapshot()); err == nil {
		c.send <- msg
	}
	h.mu.Unlock()

	go h.writeLoop(c)

	// Reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *EventsHandler) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *EventsHandler) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast runs inside the machine's notification and must not block.
// A client whose buffer is full is disconnected; it gets a fresh snapshot
// when it reconnects.
func (h *EventsHandler) broadcast(s call.Session) {
	msg, err := encodeEvent("call", s)
	if err != nil {
		h.log.WithError(err).Warn("encode call event")
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("session", s.ID).Warn("disconnecting slow event client")
		h.remove(c)
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the machine and disconnects every client.
func (h *EventsHandler) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encodeEvent(typ string, s call.Session) ([]byte, error) {
	return json.Marshal(EventMessage{Type: typ, Session: s})
}
