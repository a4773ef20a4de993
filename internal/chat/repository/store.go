package repository

import (
	"context"

	"gorm.io/gorm"

	"chat_core_service/internal/chat/domain"
)

// Repositories bundle handed to usecases, either pool-backed or tx-backed
type Repositories struct {
	Conversation ConversationRepository
	Membership   MembershipRepository
	Message      MessageRepository
	Receipt      ReceiptRepository
}

// TxRunner run fn inside one database transaction
// (leaveGroup 的轉移 owner 與 createPrivate 的 find-or-create 都必須走這裡)
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(r Repositories) error) error
}

// GormStore wires the four repositories over one *gorm.DB
type GormStore struct {
	db *gorm.DB
}

// NewGormStore create GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Repos pool-backed repositories for single-statement operations
func (s *GormStore) Repos() Repositories {
	return newRepositories(s.db)
}

// RunInTx run fn with tx-backed repositories, rolls back on error
func (s *GormStore) RunInTx(ctx context.Context, fn func(r Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}

// AutoMigrate create or update the four chat tables
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&domain.Conversation{},
		&domain.Membership{},
		&domain.Message{},
		&domain.ReadReceipt{},
	)
}

func newRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Conversation: NewConversationRepository(db),
		Membership:   NewMembershipRepository(db),
		Message:      NewMessageRepository(db),
		Receipt:      NewReceiptRepository(db),
	}
}
