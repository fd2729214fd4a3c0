package debugserver

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/treeform/nimmy/pkg/debug"
	"github.com/treeform/nimmy/pkg/vm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connection binds one WebSocket client to its own debug.Session. Unlike
// a chat server's hub of shared connections, each debug connection owns
// an independent VM — there is no cross-connection broadcast.
type Connection struct {
	ws      *websocket.Conn
	session *debug.Session
	send    chan *Event
	newVM   func() *vm.VM
}

// NewConnection wires ws to a fresh debug.Session built from newVM.
func NewConnection(ws *websocket.Conn, newVM func() *vm.VM) *Connection {
	return &Connection{
		ws:      ws,
		session: debug.New(newVM()),
		send:    make(chan *Event, 32),
		newVM:   newVM,
	}
}

// Serve upgrades r and blocks running the connection's read/write pumps
// until the client disconnects. newVM constructs a fresh VM for each
// session so stores/metrics/tracers configured on it are per-connection.
func Serve(w http.ResponseWriter, r *http.Request, newVM func() *vm.VM) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn := NewConnection(ws, newVM)
	go conn.writePump()
	conn.readPump()
	return nil
}

func (c *Connection) readPump() {
	defer func() {
		close(c.send)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[debugserver] read error: %v", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.send <- &Event{Type: EventError, Message: "invalid command: " + err.Error()}
			continue
		}
		c.handle(&cmd)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[debugserver] marshal error: %v", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
