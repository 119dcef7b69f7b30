package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Client is one live gateway connection.
//
// Identity is optional: a connection with a valid agent token carries
// UserID/Role; donor connections stay anonymous and may still join query
// rooms.
type Client struct {
	UserID  string
	Role    string
	DonorID string

	elevated bool

	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}
	hub   *Hub
}

func newClient(hub *Hub, conn *websocket.Conn, userID, role string, elevated bool) *Client {
	return &Client{
		UserID:   userID,
		Role:     role,
		elevated: elevated,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[string]struct{}),
		hub:      hub,
	}
}

// clientCommand is the inbound control frame: clients manage their own
// query-room membership.
type clientCommand struct {
	Action  string `json:"action"` // "join" | "leave"
	QueryID string `json:"query_id"`
	DonorID string `json:"donor_id,omitempty"`
}

// readPump consumes control frames until the connection drops, then cleans
// up the client's memberships.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.hub.log.Debug("gateway bad client frame", "err", err)
			continue
		}
		switch cmd.Action {
		case "join":
			c.hub.JoinQuery(c, cmd.QueryID, cmd.DonorID)
		case "leave":
			c.hub.LeaveQuery(c, cmd.QueryID)
		}
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
