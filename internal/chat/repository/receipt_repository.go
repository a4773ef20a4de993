package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat_core_service/internal/chat/domain"
)

// ReceiptRepository definition read receipt persistence
// (message_id,user_id) 為複合主鍵, Insert 靠 ON CONFLICT 保冪等
type ReceiptRepository interface {
	Insert(ctx context.Context, receipt *domain.ReadReceipt) (created bool, err error)
	Exists(ctx context.Context, messageID, userID string) (bool, error)
	ListByMessage(ctx context.Context, messageID string) ([]domain.ReadReceipt, error)
	CountByMessage(ctx context.Context, messageID string) (int64, error)
	ReadSetForUser(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error)
	ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]domain.ReadReceipt, error)
}

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository create a ReceiptRepository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

// Insert reports whether a new row was written, duplicate insert is a no-op
func (r *receiptRepository) Insert(ctx context.Context, receipt *domain.ReadReceipt) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *receiptRepository) Exists(ctx context.Context, messageID, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.ReadReceipt{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *receiptRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.ReadReceipt, error) {
	var rs []domain.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&rs).Error
	return rs, err
}

func (r *receiptRepository) CountByMessage(ctx context.Context, messageID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.ReadReceipt{}).
		Where("message_id = ?", messageID).
		Count(&n).Error
	return n, err
}

// ReadSetForUser which of messageIDs the user already read, for list annotation
func (r *receiptRepository) ReadSetForUser(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error) {
	set := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return set, nil
	}
	var rs []domain.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Find(&rs).Error
	if err != nil {
		return nil, err
	}
	for _, rr := range rs {
		set[rr.MessageID] = true
	}
	return set, nil
}

// ListByMessageIDs reader lists for a page of messages in one query
func (r *receiptRepository) ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]domain.ReadReceipt, error) {
	byMessage := make(map[string][]domain.ReadReceipt, len(messageIDs))
	if len(messageIDs) == 0 {
		return byMessage, nil
	}
	var rs []domain.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("read_at ASC").
		Find(&rs).Error
	if err != nil {
		return nil, err
	}
	for _, rr := range rs {
		byMessage[rr.MessageID] = append(byMessage[rr.MessageID], rr)
	}
	return byMessage, nil
}
