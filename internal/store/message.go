package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Message is the durable record of one direct message. The store owns the row
// once persisted; only the read flag is ever mutated, and rows are deleted
// only by their sender.
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"size:64;not null;index:idx_messages_conv_created,priority:1"`
	SenderID       int64     `gorm:"not null;index"`
	ReceiverID     int64     `gorm:"not null;index"`
	Text           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conv_created,priority:2"`
	Read           bool      `gorm:"not null;default:false"`
}

type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&User{}, &Message{})
}

func (s *MessageStore) Create(ctx context.Context, msg *Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// MarkRead flips every unread message addressed to receiverID in the
// conversation. Set-based and idempotent; returns the number of rows updated.
func (s *MessageStore) MarkRead(ctx context.Context, conversationID string, receiverID int64) (int64, error) {
	tx := s.db.WithContext(ctx).
		Model(&Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, receiverID, false).
		Update("read", true)
	return tx.RowsAffected, tx.Error
}

// History returns a page of a conversation, newest first.
func (s *MessageStore) History(ctx context.Context, conversationID string, limit, offset int) ([]Message, error) {
	var msgs []Message
	tx := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc, id desc").
		Offset(offset)
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// LatestPerConversation returns the newest message of every conversation the
// user participates in, newest conversation first. Ids are monotonic, so the
// max id per conversation is its latest message.
func (s *MessageStore) LatestPerConversation(ctx context.Context, userID int64) ([]Message, error) {
	sub := s.db.Model(&Message{}).
		Select("MAX(id)").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("conversation_id")

	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("created_at desc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Delete removes a message, but only when senderID owns it. Returns
// ErrNotFound both for a missing row and for someone else's row; callers have
// no legitimate way to tell the two apart.
func (s *MessageStore) Delete(ctx context.Context, messageID, senderID int64) error {
	tx := s.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", messageID, senderID).
		Delete(&Message{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
