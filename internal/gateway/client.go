package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"zenchat/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 64 * 1024
)

func nowPlusPong() time.Time { return time.Now().Add(pongWait) }

// Client is one live realtime connection. The identity is bound at handshake
// time and immutable afterwards. Send never blocks: slow consumers drop
// frames rather than stalling the rest of the fan-out.
type Client struct {
	ID       uuid.UUID
	Identity auth.Identity

	conn *websocket.Conn
	send chan Event

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id auth.Identity, conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Client{
		ID:       uuid.New(),
		Identity: id,
		conn:     conn,
		send:     make(chan Event, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Send enqueues an outbound event. Returns false when the frame was dropped
// (buffer full or connection closing); delivery is best-effort by contract.
func (c *Client) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		slog.Warn("ws send buffer full, dropping event",
			"user_id", c.Identity.UserID, "event", ev.Type)
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writeLoop serializes all writes to the connection; gorilla allows at most
// one concurrent writer.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
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
