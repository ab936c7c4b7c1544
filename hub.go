package main

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/Uranury/bme280d/sensors"
)

const (
	// Time allowed to write one reading to a client.
	writeWait = 10 * time.Second
	// Readings queued per client before it is dropped as too slow.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one websocket connection. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan *sensors.SensorData
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(data); err != nil {
			lg.Warnf("WebSocket write error: %v", err)
			return
		}
	}
}

// hub broadcasts readings to the connected websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*client]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*client]bool)}
}

func (h *hub) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		lg.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, send: make(chan *sensors.SensorData, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = true
	n := len(h.clients)
	h.mu.Unlock()
	lg.Infof("Client connected. Total clients: %d", n)
	go cl.writePump()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.remove(cl)
	n = len(h.clients)
	h.mu.Unlock()
	lg.Infof("Client disconnected. Total clients: %d", n)
}

// remove stops the writer of cl. h.mu must be held.
func (h *hub) remove(cl *client) {
	if h.clients[cl] {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues data for every client without blocking. A client whose
// queue is full is disconnected.
func (h *hub) Publish(data *sensors.SensorData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			lg.Warnf("WebSocket client %s too slow, disconnecting", cl.conn.RemoteAddr())
			h.remove(cl)
			cl.conn.Close()
		}
	}
}

// Close disconnects every client.
func (h *hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	for cl := range h.clients {
		h.remove(cl)
		if cerr := cl.conn.Close(); !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
