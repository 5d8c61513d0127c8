package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"zenchat/internal/auth"
	"zenchat/internal/chat"
	"zenchat/internal/observability/metrics"
)

// Gateway is the realtime messaging core: it authenticates inbound
// connections, keeps the hub's directory and rooms current, and runs the
// per-event protocol (send, typing, read receipts).
type Gateway struct {
	hub      *Hub
	chat     *chat.Service
	tokens   *auth.TokenService
	upgrader websocket.Upgrader

	sendBuffer int
}

func New(hub *Hub, chatSvc *chat.Service, tokens *auth.TokenService, sendBuffer int) *Gateway {
	return &Gateway{
		hub:    hub,
		chat:   chatSvc,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens at the CORS layer; the handshake
			// is already gated on a signed token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

// HandleWS is the handshake endpoint. The token is validated exactly once
// here; a rejected token means no connection object and no directory entry.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := g.tokens.Verify(auth.BearerFromRequest(r))
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("ws", "failure").Inc()
		slog.Warn("ws handshake rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	metrics.AuthAttemptsTotal.WithLabelValues("ws", "success").Inc()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Warn("ws upgrade failed", "error", err, "user_id", identity.UserID)
		return
	}

	client := newClient(identity, conn, g.sendBuffer)
	g.hub.Register(client)
	metrics.WSConnections.WithLabelValues().Inc()
	slog.Info("user connected", "user_id", identity.UserID, "username", identity.Username)

	g.hub.BroadcastAll(Event{Type: EvtUserOnline, Data: presencePayload{
		UserID:   identity.UserID,
		Username: identity.Username,
	}})

	go client.writeLoop()
	g.readLoop(client)
	g.disconnect(client)
}

// readLoop processes events strictly in arrival order for this connection.
// That sequencing is what makes same-connection sends persist with
// non-decreasing timestamps; do not hand events to separate goroutines here.
func (g *Gateway) readLoop(c *Client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(nowPlusPong())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(nowPlusPong())
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			slog.Debug("ws malformed frame", "user_id", c.Identity.UserID, "error", err)
			continue
		}
		metrics.WSEventsTotal.WithLabelValues(ev.Type).Inc()

		switch ev.Type {
		case EvtConversationJoin:
			g.handleJoin(c, ev.Data)
		case EvtMessageSend:
			g.handleSend(c, ev.Data)
		case EvtTypingStart:
			g.handleTyping(c, ev.Data, true)
		case EvtTypingStop:
			g.handleTyping(c, ev.Data, false)
		case EvtMessagesRead:
			g.handleRead(c, ev.Data)
		default:
			slog.Debug("ws unknown event", "user_id", c.Identity.UserID, "event", ev.Type)
		}
	}
}

func (g *Gateway) handleJoin(c *Client, data json.RawMessage) {
	convID := joinConversationID(data)
	if convID == "" {
		return
	}
	g.hub.Join(c, convID)
	slog.Debug("joined conversation", "user_id", c.Identity.UserID, "conversation_id", convID)
}

func (g *Gateway) handleSend(c *Client, data json.RawMessage) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.Send(Event{Type: EvtMessageError, Data: errorPayload{Error: "invalid payload"}})
		return
	}

	// Background context on purpose: a disconnect mid-persist must not
	// cancel the write. The message survives; emission to the departed
	// handle is simply dropped.
	msg, err := g.chat.Send(context.Background(), chat.SendInput{
		SenderID:       c.Identity.UserID,
		ReceiverID:     p.ReceiverID,
		ConversationID: p.ConversationID,
		Text:           p.Text,
	}, chat.Profile{ID: c.Identity.UserID, Username: c.Identity.Username})
	if err != nil {
		if errors.Is(err, chat.ErrInvalidMessage) {
			c.Send(Event{Type: EvtMessageError, Data: errorPayload{Error: "invalid message"}})
		} else {
			slog.Error("send persist failed", "error", err, "user_id", c.Identity.UserID)
			c.Send(Event{Type: EvtMessageError, Data: errorPayload{Error: "failed to send message"}})
		}
		return
	}
	metrics.MessagesStoredTotal.WithLabelValues("realtime").Inc()

	g.hub.planFanout(c, msg).dispatch(g.hub)
}

func (g *Gateway) handleTyping(c *Client, data json.RawMessage, isTyping bool) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	receiver := g.hub.Lookup(p.ReceiverID)
	if receiver == nil {
		// Receiver offline: ephemeral signal, silently dropped.
		return
	}
	receiver.Send(Event{Type: EvtTypingUser, Data: typingUserPayload{
		UserID:         c.Identity.UserID,
		Username:       c.Identity.Username,
		ConversationID: p.ConversationID,
		IsTyping:       isTyping,
	}})
}

func (g *Gateway) handleRead(c *Client, data json.RawMessage) {
	var p readPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		return
	}

	n, err := g.chat.MarkRead(context.Background(), p.ConversationID, c.Identity.UserID)
	if err != nil {
		// Best-effort UX signal: log and swallow, never surface to the caller.
		slog.Error("mark read failed", "error", err,
			"user_id", c.Identity.UserID, "conversation_id", p.ConversationID)
		return
	}
	metrics.MessagesReadTotal.WithLabelValues().Add(float64(n))

	g.hub.BroadcastRoom(p.ConversationID, c, Event{Type: EvtMessagesRead, Data: readBroadcastPayload{
		ConversationID: p.ConversationID,
		UserID:         c.Identity.UserID,
	}})
}

func (g *Gateway) disconnect(c *Client) {
	g.hub.Remove(c)
	c.close()
	metrics.WSConnections.WithLabelValues().Dec()
	slog.Info("user disconnected", "user_id", c.Identity.UserID, "username", c.Identity.Username)

	g.hub.BroadcastAll(Event{Type: EvtUserOffline, Data: presencePayload{
		UserID:   c.Identity.UserID,
		Username: c.Identity.Username,
	}})
}
