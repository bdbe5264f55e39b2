package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flatfinder/flatfinder/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin screening is handled by the CORS layer in front
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection owned by a single uid.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	uid  string
	send chan []byte
}

// controlFrame is what clients send upstream: group subscribe/unsubscribe.
type controlFrame struct {
	Type    string `json:"type"` // "subscribe" | "unsubscribe"
	GroupID string `json:"group_id"`
}

// Serve upgrades the request and runs the connection until it drops. The
// deferred unregister is the single teardown point: it releases the uid
// registration and every group subscription this connection opened.
func Serve(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString("uid")
		if uid == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "err", err)
			return
		}

		client := &Client{hub: hub, conn: conn, uid: uid, send: make(chan []byte, sendBuffer)}
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		// slow consumer; drop rather than stall the hub
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame controlFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error", "uid", c.uid, "err", err)
			}
			return
		}

		switch frame.Type {
		case "subscribe":
			c.hub.subs <- subRequest{client: c, groupID: frame.GroupID, subscribe: true}
		case "unsubscribe":
			c.hub.subs <- subRequest{client: c, groupID: frame.GroupID, subscribe: false}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
