package gateway

import "encoding/json"

// Realtime event surface. Inbound and outbound frames share one envelope:
// {"type": "...", "data": ...}.
const (
	EvtConversationJoin = "conversation:join"

	EvtMessageSend     = "message:send"
	EvtMessageSent     = "message:sent"
	EvtMessageReceived = "message:received"
	EvtMessageNew      = "message:new"
	EvtMessageError    = "message:error"

	EvtTypingStart = "typing:start"
	EvtTypingStop  = "typing:stop"
	EvtTypingUser  = "typing:user"

	// In: {conversationId}. Out: {conversationId, userId}, to the room.
	EvtMessagesRead = "messages:read"

	EvtUserOnline  = "user:online"
	EvtUserOffline = "user:offline"
)

// Event is an outbound frame. Data is marshaled as-is.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundEvent defers payload decoding until the type is known.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type sendPayload struct {
	ReceiverID     int64  `json:"receiverId"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ReceiverID     int64  `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

type typingUserPayload struct {
	UserID         int64  `json:"userId"`
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type readPayload struct {
	ConversationID string `json:"conversationId"`
}

type readBroadcastPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         int64  `json:"userId"`
}

type presencePayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// joinConversationID accepts both a bare string payload and an object with a
// conversationId field; clients have historically sent either.
func joinConversationID(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ConversationID
	}
	return ""
}
