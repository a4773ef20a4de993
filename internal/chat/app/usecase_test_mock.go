package app

import (
	"context"
	"sync"
	"time"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// Create moke create conversation
func (m *MockConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID moke find conversation by id
func (m *MockConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByIDForUpdate moke find conversation with row lock
func (m *MockConversationRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPrivateByPairKey moke find private conversation by pair key
func (m *MockConversationRepository) FindPrivateByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPrivateByPairKeyForUpdate moke find private conversation with row lock
func (m *MockConversationRepository) FindPrivateByPairKeyForUpdate(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// Save moke save conversation
func (m *MockConversationRepository) Save(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// SetLastMessage moke bump last activity
func (m *MockConversationRepository) SetLastMessage(ctx context.Context, convID, messageID string, at time.Time) error {
	args := m.Called(ctx, convID, messageID, at)
	return args.Error(0)
}

// ListForUser moke list conversations for user
func (m *MockConversationRepository) ListForUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID, opts)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMembershipRepository Mock MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

// Create moke create membership
func (m *MockMembershipRepository) Create(ctx context.Context, ms *domain.Membership) error {
	args := m.Called(ctx, ms)
	return args.Error(0)
}

// CreateBatch moke create memberships
func (m *MockMembershipRepository) CreateBatch(ctx context.Context, ms []*domain.Membership) error {
	args := m.Called(ctx, ms)
	return args.Error(0)
}

// FindActive moke find active membership
func (m *MockMembershipRepository) FindActive(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	args := m.Called(ctx, convID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindActiveForUpdate moke find active membership with row lock
func (m *MockMembershipRepository) FindActiveForUpdate(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	args := m.Called(ctx, convID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindAny moke find latest membership regardless of left state
func (m *MockMembershipRepository) FindAny(ctx context.Context, convID, userID string) (*domain.Membership, error) {
	args := m.Called(ctx, convID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// ActiveMembers moke list active members joined_at asc
func (m *MockMembershipRepository) ActiveMembers(ctx context.Context, convID string) ([]domain.Membership, error) {
	args := m.Called(ctx, convID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// Save moke save membership
func (m *MockMembershipRepository) Save(ctx context.Context, ms *domain.Membership) error {
	args := m.Called(ctx, ms)
	return args.Error(0)
}

// CountActive moke count active members
func (m *MockMembershipRepository) CountActive(ctx context.Context, convID string) (int64, error) {
	args := m.Called(ctx, convID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Create moke create message
func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID moke find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// Save moke save message
func (m *MockMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Delete moke hard delete message
func (m *MockMessageRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// List moke list messages
func (m *MockMessageRepository) List(ctx context.Context, convID string, opts domain.MessageListOptions) ([]domain.Message, error) {
	args := m.Called(ctx, convID, opts)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// UnreadCount moke receipt-based unread count
func (m *MockMessageRepository) UnreadCount(ctx context.Context, convID, userID string) (int64, error) {
	args := m.Called(ctx, convID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// ListUnread moke list unread messages up to a bound
func (m *MockMessageRepository) ListUnread(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) ([]domain.Message, error) {
	args := m.Called(ctx, convID, userID, throughCreatedAt)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountFromOthers moke count messages from other senders
func (m *MockMessageRepository) CountFromOthers(ctx context.Context, convID, userID string, throughCreatedAt *time.Time) (int64, error) {
	args := m.Called(ctx, convID, userID, throughCreatedAt)
	return args.Get(0).(int64), args.Error(1)
}

// MockReceiptRepository Mock ReceiptRepository
type MockReceiptRepository struct {
	mock.Mock
}

// Insert moke insert receipt, duplicate is a no-op
func (m *MockReceiptRepository) Insert(ctx context.Context, receipt *domain.ReadReceipt) (bool, error) {
	args := m.Called(ctx, receipt)
	return args.Bool(0), args.Error(1)
}

// Exists moke receipt exists
func (m *MockReceiptRepository) Exists(ctx context.Context, messageID, userID string) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

// ListByMessage moke list receipts of one message
func (m *MockReceiptRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.ReadReceipt, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ReadReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountByMessage moke count receipts of one message
func (m *MockReceiptRepository) CountByMessage(ctx context.Context, messageID string) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

// ReadSetForUser moke bulk read-state lookup
func (m *MockReceiptRepository) ReadSetForUser(ctx context.Context, userID string, messageIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, userID, messageIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]bool), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByMessageIDs moke bulk reader lists
func (m *MockReceiptRepository) ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]domain.ReadReceipt, error) {
	args := m.Called(ctx, messageIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string][]domain.ReadReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockIdentityProvider Mock IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

// Exists moke member exists
func (m *MockIdentityProvider) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// IsActive moke member is active
func (m *MockIdentityProvider) IsActive(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// DisplayName moke member display name
func (m *MockIdentityProvider) DisplayName(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// RecordingNotifier 收集事件供斷言, 不做任何投遞
type RecordingNotifier struct {
	mu     sync.Mutex
	Events []domain.Event
}

// NotifyUser record the event
func (n *RecordingNotifier) NotifyUser(userID string, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
}

// NotifyConversation record the event
func (n *RecordingNotifier) NotifyConversation(conversationID string, memberIDs []string, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
}

// Named events matching one name, oldest first
func (n *RecordingNotifier) Named(name domain.EventName) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// fakeTxRunner run fn against the same mock repositories, no real transaction
type fakeTxRunner struct {
	repos repository.Repositories
}

func (f *fakeTxRunner) RunInTx(_ context.Context, fn func(r repository.Repositories) error) error {
	return fn(f.repos)
}

// testEnv bundle of mocks behind one usecase wiring
type testEnv struct {
	conv     *MockConversationRepository
	member   *MockMembershipRepository
	message  *MockMessageRepository
	receipt  *MockReceiptRepository
	identity *MockIdentityProvider
	notifier *RecordingNotifier
	repos    repository.Repositories
	tx       repository.TxRunner
}

func newTestEnv() *testEnv {
	env := &testEnv{
		conv:     new(MockConversationRepository),
		member:   new(MockMembershipRepository),
		message:  new(MockMessageRepository),
		receipt:  new(MockReceiptRepository),
		identity: new(MockIdentityProvider),
		notifier: new(RecordingNotifier),
	}
	env.repos = repository.Repositories{
		Conversation: env.conv,
		Membership:   env.member,
		Message:      env.message,
		Receipt:      env.receipt,
	}
	env.tx = &fakeTxRunner{repos: env.repos}
	return env
}

func (env *testEnv) conversationUC() *ConversationUseCase {
	return NewConversationUseCase(env.repos, env.tx, env.identity, env.notifier, env.groupUC())
}

func (env *testEnv) groupUC() *GroupUseCase {
	return NewGroupUseCase(env.repos, env.tx, env.identity, env.notifier)
}

func (env *testEnv) messageUC() *MessageUseCase {
	return NewMessageUseCase(env.repos, env.identity, env.notifier)
}

func (env *testEnv) readTrackerUC() *ReadTrackerUseCase {
	return NewReadTrackerUseCase(env.repos, env.tx)
}
