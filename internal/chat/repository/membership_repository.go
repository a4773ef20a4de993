package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat_core_service/internal/chat/domain"
)

// MembershipRepository definition membership persistence
// active 唯一性由 partial unique index 保證, 不只靠應用層檢查
type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	CreateBatch(ctx context.Context, ms []*domain.Membership) error
	FindActive(ctx context.Context, convID, userID string) (*domain.Membership, error)
	FindActiveForUpdate(ctx context.Context, convID, userID string) (*domain.Membership, error)
	FindAny(ctx context.Context, convID, userID string) (*domain.Membership, error)
	ActiveMembers(ctx context.Context, convID string) ([]domain.Membership, error)
	Save(ctx context.Context, m *domain.Membership) error
	CountActive(ctx context.Context, convID string) (int64, error)
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository create a MembershipRepository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *membershipRepository) CreateBatch(ctx context.Context, ms []*domain.Membership) error {
	if len(ms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(ms).Error
}

func (r *membershipRepository) FindActive(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	return r.findActive(ctx, r.db, convID, userID)
}

func (r *membershipRepository) FindActiveForUpdate(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	return r.findActive(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), convID, userID)
}

func (r *membershipRepository) findActive(ctx context.Context, db *gorm.DB, convID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", convID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// FindAny latest membership row regardless of left state, reactivation looks here
func (r *membershipRepository) FindAny(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Order("joined_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ActiveMembers ordered by joined_at asc, ownership transfer relies on this order
func (r *membershipRepository) ActiveMembers(ctx context.Context, convID string) ([]domain.Membership, error) {
	var ms []domain.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND left_at IS NULL", convID).
		Order("joined_at ASC").
		Find(&ms).Error
	return ms, err
}

func (r *membershipRepository) Save(ctx context.Context, m *domain.Membership) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *membershipRepository) CountActive(ctx context.Context, convID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("conversation_id = ? AND left_at IS NULL", convID).
		Count(&n).Error
	return n, err
}
