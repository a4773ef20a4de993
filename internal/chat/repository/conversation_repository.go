package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat_core_service/internal/chat/domain"
)

// ConversationRepository definition conversation persistence
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Conversation, error)
	FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error)
	FindPrivateByPairKeyForUpdate(ctx context.Context, pairKey string) (*domain.Conversation, error)
	Save(ctx context.Context, conv *domain.Conversation) error
	SetLastMessage(ctx context.Context, convID, messageID string, at time.Time) error
	ListForUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository create a ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// IsDuplicateKey unique constraint violation, 依賴 gorm 的 TranslateError
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return r.findOne(ctx, r.db, "id = ?", id)
}

// FindByIDForUpdate row-locked lookup, only meaningful inside RunInTx
func (r *conversationRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Conversation, error) {
	return r.findOne(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *conversationRepository) FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	return r.findOne(ctx, r.db, "pair_key = ?", pairKey)
}

func (r *conversationRepository) FindPrivateByPairKeyForUpdate(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	return r.findOne(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), "pair_key = ?", pairKey)
}

func (r *conversationRepository) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).Where(query, args...).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Save(ctx context.Context, conv *domain.Conversation) error {
	return r.db.WithContext(ctx).Save(conv).Error
}

// SetLastMessage last-writer-wins, concurrent sends可以互相覆蓋
func (r *conversationRepository) SetLastMessage(ctx context.Context, convID, messageID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"last_message_id":  messageID,
			"last_activity_at": at,
		}).Error
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Conversation, error) {
	q := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Joins("JOIN memberships ON memberships.conversation_id = conversations.id AND memberships.user_id = ? AND memberships.left_at IS NULL", userID)

	if !opts.IncludeArchived {
		q = q.Where("memberships.is_archived = ?", false)
	}
	if opts.StatusFilter != "" {
		q = q.Where("conversations.status = ?", opts.StatusFilter)
	}

	var convs []domain.Conversation
	err := q.Order("conversations.last_activity_at DESC").
		Limit(domain.ClampLimit(opts.Limit)).
		Offset(opts.Offset).
		Find(&convs).Error
	return convs, err
}
