package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zenchat/internal/auth"
	"zenchat/internal/chat"
	"zenchat/internal/observability/metrics"
)

// messageHandler is the non-realtime fallback: same persistence semantics as
// the gateway's send pipeline, but it never attempts a realtime push.
type messageHandler struct {
	chat *chat.Service
}

func (h *messageHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversations, err := h.chat.Conversations(r.Context(), id.UserID)
	if err != nil {
		slog.Error("list conversations", "error", err, "user_id", id.UserID)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "conversations": conversations})
}

func (h *messageHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	otherID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || otherID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	convID, messages, err := h.chat.History(r.Context(), id.UserID, otherID, page, limit)
	if err != nil {
		slog.Error("get messages", "error", err, "user_id", id.UserID)
		writeError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	// Fetching a conversation marks the caller's unread messages read.
	if n, err := h.chat.MarkRead(r.Context(), convID, id.UserID); err != nil {
		slog.Warn("mark read on fetch", "error", err, "conversation_id", convID)
	} else if n > 0 {
		metrics.MessagesReadTotal.WithLabelValues().Add(float64(n))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"conversationId": convID,
		"messages":       messages,
	})
}

func (h *messageHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	receiverID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || receiverID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user")
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	msg, err := h.chat.Send(r.Context(), chat.SendInput{
		SenderID:   id.UserID,
		ReceiverID: receiverID,
		Text:       body.Text,
	}, chat.Profile{ID: id.UserID, Username: id.Username})
	if err != nil {
		if errors.Is(err, chat.ErrInvalidMessage) {
			writeError(w, http.StatusBadRequest, "message cannot be empty")
			return
		}
		slog.Error("rest send", "error", err, "user_id", id.UserID)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	metrics.MessagesStoredTotal.WithLabelValues("rest").Inc()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}

func (h *messageHandler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || messageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid message")
		return
	}

	if err := h.chat.Delete(r.Context(), messageID, id.UserID); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found or not yours")
			return
		}
		slog.Error("delete message", "error", err, "user_id", id.UserID)
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "message deleted"})
}
