package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// conn is the part of a websocket connection the pumps use. Both gorilla and
// fiber connections satisfy it.
type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Hub keeps the live attendance board clients and fans attendance events out to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// Client is one board connection. ClassID 0 follows every class.
type Client struct {
	hub     *Hub
	send    chan []byte
	classID uint
}

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AttendanceUpdate is the payload of an "attendance.updated" message.
type AttendanceUpdate struct {
	Event    attendance.EventType    `json:"event"`
	Previous models.AttendanceStatus `json:"previous_status"`
	Record   models.Attendance       `json:"record"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithField("class_id", client.classID).Debug("Attendance board client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			logrus.WithField("class_id", client.classID).Debug("Attendance board client disconnected")
		}
	}
}

// AttendanceChanged broadcasts an engine event to the clients following its class.
func (h *Hub) AttendanceChanged(_ context.Context, ev attendance.Event) {
	h.BroadcastToClass(ev.Record.ClassID, Message{
		Type: "attendance.updated",
		Data: AttendanceUpdate{Event: ev.Type, Previous: ev.Previous, Record: ev.Record},
	})
}

// BroadcastToClass sends message to clients of classID and to clients following all classes.
// Clients whose buffer is full are dropped.
func (h *Hub) BroadcastToClass(classID uint, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if client.classID != 0 && client.classID != classID {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades a net/http request and serves it until the peer goes away.
// The fiber route uses ServeFiberWS; this entry point serves plain net/http hosts
// and the hub tests.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, classID uint) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade error")
		return
	}
	h.serve(c, classID)
}

// ServeFiberWS serves an upgraded fiber connection. It blocks until the peer goes away.
func (h *Hub) ServeFiberWS(c *fiberws.Conn, classID uint) {
	h.serve(c, classID)
}

func (h *Hub) serve(c conn, classID uint) {
	client := &Client{
		hub:     h,
		send:    make(chan []byte, 256),
		classID: classID,
	}
	h.register <- client

	go client.writePump(c)
	client.readPump(c)
}

func (client *Client) writePump(c conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; board clients never send data.
func (client *Client) readPump(c conn) {
	defer func() {
		client.hub.unregister <- client
		c.Close()
	}()

	c.SetReadLimit(maxMessageSize)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("Attendance board closed unexpectedly")
			}
			return
		}
	}
}
