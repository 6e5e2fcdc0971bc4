package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1024
	sendBuffer = 128
)

// Client is one websocket connection fed from a Hub or a JobHub.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	topics  map[string]bool
	onClose func()
}

// NewClient returns a hub client that receives only the given event types,
// or every event when none are given. It leaves the hub when ReadPump exits.
func NewClient(hub *Hub, conn *websocket.Conn, topics ...string) *Client {
	c := newClient(conn, nil)
	if len(topics) > 0 {
		c.topics = map[string]bool{}
		for _, t := range topics {
			c.topics[t] = true
		}
	}
	c.onClose = func() { hub.Unregister(c) }
	return c
}

func newClient(conn *websocket.Conn, onClose func()) *Client {
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), onClose: onClose}
}

func (c *Client) wants(typ string) bool {
	return c.topics == nil || c.topics[typ]
}

// ReadPump discards inbound messages and keeps the read deadline fresh until
// the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose()
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump sends queued events and keepalive pings until the send queue is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		var err error
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, msg)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}
