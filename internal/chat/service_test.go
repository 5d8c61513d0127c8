package chat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"zenchat/internal/chat"
	"zenchat/internal/store"
)

func setupService(t *testing.T) (*chat.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.AutoMigrate(context.Background(), db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	svc := chat.NewService(store.NewMessageStore(db), store.NewUserStore(db))
	return svc, db
}

func createUser(t *testing.T, db *gorm.DB, username string) store.User {
	t.Helper()
	u := store.User{
		Username:       username,
		Email:          username + "@example.com",
		PasswordHash:   []byte("h"),
		PasswordSalt:   []byte("s"),
		PasswordParams: []byte("{}"),
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func TestSendPersistsExactFields(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.SendInput{
		SenderID:       1,
		ReceiverID:     2,
		ConversationID: "conv_1_2",
		Text:           "  hi  ",
	}, chat.Profile{ID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if msg.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	if msg.ConversationID != "conv_1_2" || msg.SenderID != 1 || msg.ReceiverID != 2 {
		t.Fatalf("unexpected message identity: %+v", msg)
	}
	if msg.Text != "hi" {
		t.Fatalf("expected trimmed text, got %q", msg.Text)
	}
	if msg.Read {
		t.Fatal("read must be false immediately after insert")
	}
	if msg.Sender == nil || msg.Sender.Username != "alice" {
		t.Fatalf("expected embedded sender profile, got %+v", msg.Sender)
	}

	var row store.Message
	if err := db.First(&row, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("fetch row: %v", err)
	}
	if row.ConversationID != "conv_1_2" || row.SenderID != 1 || row.ReceiverID != 2 || row.Read {
		t.Fatalf("persisted row does not match input: %+v", row)
	}
}

func TestSendDerivesConversationIDWhenMissing(t *testing.T) {
	svc, _ := setupService(t)

	msg, err := svc.Send(context.Background(), chat.SendInput{
		SenderID:   9,
		ReceiverID: 3,
		Text:       "hello",
	}, chat.Profile{ID: 9})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ConversationID != "conv_3_9" {
		t.Fatalf("expected derived conversation id conv_3_9, got %q", msg.ConversationID)
	}
}

func TestSendValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   chat.SendInput
	}{
		{"empty text", chat.SendInput{SenderID: 1, ReceiverID: 2, Text: ""}},
		{"whitespace text", chat.SendInput{SenderID: 1, ReceiverID: 2, Text: "   "}},
		{"missing receiver", chat.SendInput{SenderID: 1, Text: "hi"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tc.in, chat.Profile{ID: 1})
			if !errors.Is(err, chat.ErrInvalidMessage) {
				t.Fatalf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, chat.SendInput{
			SenderID: 1, ReceiverID: 2, Text: fmt.Sprintf("msg %d", i),
		}, chat.Profile{ID: 1})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	n, err := svc.MarkRead(ctx, "conv_1_2", 2)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows updated, got %d", n)
	}

	n, err = svc.MarkRead(ctx, "conv_1_2", 2)
	if err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows updated on repeat, got %d", n)
	}
}

func TestMarkReadScopedToReceiver(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, chat.SendInput{SenderID: 1, ReceiverID: 2, Text: "to b"}, chat.Profile{ID: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, chat.SendInput{SenderID: 2, ReceiverID: 1, Text: "to a"}, chat.Profile{ID: 2}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// User 1 reading must not flip the message addressed to user 2.
	n, err := svc.MarkRead(ctx, "conv_1_2", 1)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row updated, got %d", n)
	}

	var unread int64
	if err := db.Model(&store.Message{}).Where("receiver_id = ? AND read = ?", 2, false).Count(&unread).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected user 2's message to stay unread, got %d unread", unread)
	}
}

func TestHistoryOrderAndProfiles(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	for i := 0; i < 5; i++ {
		sender, receiver := alice, bob
		if i%2 == 1 {
			sender, receiver = bob, alice
		}
		_, err := svc.Send(ctx, chat.SendInput{
			SenderID: sender.ID, ReceiverID: receiver.ID, Text: fmt.Sprintf("msg %d", i),
		}, chat.Profile{ID: sender.ID, Username: sender.Username})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	convID, msgs, err := svc.History(ctx, alice.ID, bob.ID, 1, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if convID != chat.ConversationID(alice.ID, bob.ID) {
		t.Fatalf("unexpected conversation id %q", convID)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID < msgs[i-1].ID {
			t.Fatalf("history not oldest-first: ids %d before %d", msgs[i-1].ID, msgs[i].ID)
		}
	}
	if msgs[0].Sender == nil || msgs[0].Sender.Username != "alice" {
		t.Fatalf("expected sender profile on first message, got %+v", msgs[0].Sender)
	}
}

func TestConversationsSummaries(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	if _, err := svc.Send(ctx, chat.SendInput{SenderID: bob.ID, ReceiverID: alice.ID, Text: "old"}, chat.Profile{ID: bob.ID}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, chat.SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Text: "latest with bob"}, chat.Profile{ID: alice.ID}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, chat.SendInput{SenderID: carol.ID, ReceiverID: alice.ID, Text: "hi from carol"}, chat.Profile{ID: carol.ID}); err != nil {
		t.Fatalf("send: %v", err)
	}

	summaries, err := svc.Conversations(ctx, alice.ID)
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(summaries))
	}

	byID := map[string]chat.ConversationSummary{}
	for _, s := range summaries {
		byID[s.ID] = s
	}

	withBob := byID[chat.ConversationID(alice.ID, bob.ID)]
	if withBob.LastMessage.Text != "latest with bob" {
		t.Fatalf("expected latest message, got %q", withBob.LastMessage.Text)
	}
	if !withBob.LastMessage.IsOwn {
		t.Fatal("latest message with bob was sent by alice, IsOwn must be true")
	}
	if withBob.User.Username != "bob" {
		t.Fatalf("expected peer profile bob, got %+v", withBob.User)
	}

	withCarol := byID[chat.ConversationID(alice.ID, carol.ID)]
	if withCarol.LastMessage.IsOwn {
		t.Fatal("carol sent the latest message, IsOwn must be false")
	}
	if withCarol.User.Username != "carol" {
		t.Fatalf("expected peer profile carol, got %+v", withCarol.User)
	}
}

func TestDeleteOnlyBySender(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, chat.SendInput{SenderID: 1, ReceiverID: 2, Text: "mine"}, chat.Profile{ID: 1})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.Delete(ctx, msg.ID, 2); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("receiver delete: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, msg.ID, 1); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if err := svc.Delete(ctx, msg.ID, 1); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("repeat delete: expected ErrNotFound, got %v", err)
	}
}

func TestSameSenderTimestampsMonotonic(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 10; i++ {
		msg, err := svc.Send(ctx, chat.SendInput{SenderID: 1, ReceiverID: 2, Text: "m"}, chat.Profile{ID: 1})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if msg.CreatedAt.Before(prev) {
			t.Fatalf("createdAt went backwards at message %d", i)
		}
		prev = msg.CreatedAt
	}
}
