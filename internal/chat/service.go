package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"zenchat/internal/store"
)

var (
	ErrInvalidMessage = errors.New("chat: invalid message")
	ErrNotFound       = errors.New("chat: not found")
)

// Profile is the minimal sender info embedded in outbound messages.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Message is the canonical shape emitted to clients: store-assigned fields
// plus the sender profile, so receivers never need a second lookup.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	ReceiverID     int64     `json:"receiverId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read"`
	Sender         *Profile  `json:"sender,omitempty"`
}

type ConversationSummary struct {
	ID          string      `json:"id"`
	LastMessage LastMessage `json:"lastMessage"`
	User        Profile     `json:"user"`
}

type LastMessage struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	IsOwn     bool      `json:"isOwn"`
	Read      bool      `json:"read"`
}

type SendInput struct {
	SenderID       int64
	ReceiverID     int64
	ConversationID string
	Text           string
}

// Service owns the persistence side of messaging; delivery is someone else's
// concern. The injectable clock keeps timestamp assertions deterministic in
// tests.
type Service struct {
	messages *store.MessageStore
	users    *store.UserStore
	now      func() time.Time
}

func NewService(messages *store.MessageStore, users *store.UserStore) *Service {
	return &Service{messages: messages, users: users, now: time.Now}
}

// Send validates and persists one message. This is the durability point: on
// error nothing was stored and nothing may be emitted. The returned message
// carries the sender profile passed in by the caller (the gateway already
// holds the connection's bound identity).
func (s *Service) Send(ctx context.Context, in SendInput, sender Profile) (Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || in.ReceiverID <= 0 {
		return Message{}, ErrInvalidMessage
	}
	convID := in.ConversationID
	if convID == "" {
		convID = ConversationID(in.SenderID, in.ReceiverID)
	}

	row := store.Message{
		ConversationID: convID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Text:           text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.Create(ctx, &row); err != nil {
		return Message{}, err
	}

	msg := toMessage(row)
	msg.Sender = &sender
	return msg, nil
}

// MarkRead flips the caller's unread messages in a conversation to read.
// Idempotent; zero rows updated is a valid outcome, not an error.
func (s *Service) MarkRead(ctx context.Context, conversationID string, readerID int64) (int64, error) {
	return s.messages.MarkRead(ctx, conversationID, readerID)
}

// History returns a page of the conversation between userID and otherID,
// oldest first within the page, each message carrying its sender's profile.
func (s *Service) History(ctx context.Context, userID, otherID int64, page, limit int) (string, []Message, error) {
	if otherID <= 0 {
		return "", nil, ErrInvalidMessage
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	convID := ConversationID(userID, otherID)
	rows, err := s.messages.History(ctx, convID, limit, (page-1)*limit)
	if err != nil {
		return "", nil, err
	}

	profiles, err := s.profilesFor(ctx, rows)
	if err != nil {
		return "", nil, err
	}

	msgs := make([]Message, 0, len(rows))
	// Store returns newest first; clients want oldest first.
	for i := len(rows) - 1; i >= 0; i-- {
		m := toMessage(rows[i])
		if p, ok := profiles[rows[i].SenderID]; ok {
			m.Sender = &p
		}
		msgs = append(msgs, m)
	}
	return convID, msgs, nil
}

// Conversations lists the caller's conversations with their latest message
// and the peer's profile, newest activity first.
func (s *Service) Conversations(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	rows, err := s.messages.LatestPerConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		peerIDs = append(peerIDs, peerOf(r, userID))
	}
	profiles, err := s.users.ByIDs(ctx, peerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(rows))
	for _, r := range rows {
		peerID := peerOf(r, userID)
		summary := ConversationSummary{
			ID: r.ConversationID,
			LastMessage: LastMessage{
				Text:      r.Text,
				CreatedAt: r.CreatedAt,
				IsOwn:     r.SenderID == userID,
				Read:      r.Read,
			},
			User: Profile{ID: peerID},
		}
		if u, ok := profiles[peerID]; ok {
			summary.User = Profile{ID: u.ID, Username: u.Username, Avatar: u.AvatarURL}
		}
		out = append(out, summary)
	}
	return out, nil
}

// Delete removes a message when the caller is its sender.
func (s *Service) Delete(ctx context.Context, messageID, senderID int64) error {
	if messageID <= 0 {
		return ErrInvalidMessage
	}
	err := s.messages.Delete(ctx, messageID, senderID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) profilesFor(ctx context.Context, rows []store.Message) (map[int64]Profile, error) {
	seen := map[int64]struct{}{}
	ids := make([]int64, 0, 2)
	for _, r := range rows {
		if _, ok := seen[r.SenderID]; !ok {
			seen[r.SenderID] = struct{}{}
			ids = append(ids, r.SenderID)
		}
	}
	users, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Profile, len(users))
	for id, u := range users {
		out[id] = Profile{ID: u.ID, Username: u.Username, Avatar: u.AvatarURL}
	}
	return out, nil
}

func toMessage(r store.Message) Message {
	return Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		Text:           r.Text,
		CreatedAt:      r.CreatedAt,
		Read:           r.Read,
	}
}

func peerOf(r store.Message, userID int64) int64 {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}
