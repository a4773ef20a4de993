package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chat_core_service/internal/chat/domain"
)

// MessageRepository definition message persistence
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	Save(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, convID string, opts domain.MessageListOptions) ([]domain.Message, error)
	UnreadCount(ctx context.Context, convID, userID string) (int64, error)
	ListUnread(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) ([]domain.Message, error)
	CountFromOthers(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Save(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

// Delete hard delete, receipts go away through the FK cascade
func (r *messageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Message{}, "id = ?", id).Error
}

func (r *messageRepository) List(ctx context.Context, convID string, opts domain.MessageListOptions) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", convID)
	if opts.Before != nil {
		q = q.Where("created_at < ?", *opts.Before)
	}
	if opts.After != nil {
		q = q.Where("created_at > ?", *opts.After)
	}

	var msgs []domain.Message
	err := q.Order("created_at ASC").
		Limit(domain.ClampLimit(opts.Limit)).
		Offset(opts.Offset).
		Find(&msgs).Error
	return msgs, err
}

// UnreadCount 以 receipt 為準, 不看 last_read_at (亂序送達會少算)
func (r *messageRepository) UnreadCount(ctx context.Context, convID, userID string) (int64, error) {
	var n int64
	err := r.unreadQuery(ctx, convID, userID).Count(&n).Error
	return n, err
}

func (r *messageRepository) ListUnread(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) ([]domain.Message, error) {
	q := r.unreadQuery(ctx, convID, userID)
	if throughCreatedAt != nil {
		q = q.Where("messages.created_at <= ?", *throughCreatedAt)
	}
	var msgs []domain.Message
	err := q.Order("messages.created_at ASC").Find(&msgs).Error
	return msgs, err
}

// CountFromOthers all messages not authored by userID, optionally bounded
func (r *messageRepository) CountFromOthers(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", convID, userID)
	if throughCreatedAt != nil {
		q = q.Where("created_at <= ?", *throughCreatedAt)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *messageRepository) unreadQuery(ctx context.Context, convID, userID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("messages.conversation_id = ? AND messages.sender_id <> ?", convID, userID).
		Where("NOT EXISTS (SELECT 1 FROM read_receipts rr WHERE rr.message_id = messages.id AND rr.user_id = ?)", userID)
}
