package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
	"chat_core_service/pkg"
	errprocess "chat_core_service/pkg/err"
)

// ConversationUseCase 負責 private 請求流程與 conversation 查詢
type ConversationUseCase struct {
	repos    repository.Repositories
	tx       repository.TxRunner
	identity domain.IdentityProvider
	notifier domain.Notifier
	group    *GroupUseCase
}

// NewConversationUseCase init conversation use case
func NewConversationUseCase(
	repos repository.Repositories,
	tx repository.TxRunner,
	identity domain.IdentityProvider,
	notifier domain.Notifier,
	group *GroupUseCase,
) *ConversationUseCase {
	return &ConversationUseCase{
		repos:    repos,
		tx:       tx,
		identity: identity,
		notifier: notifier,
		group:    group,
	}
}

// CreatePrivate find-or-create-or-reopen for an unordered user pair
// 整段在一個 transaction 內, pair row 上鎖, 防止兩個請求各開一間房
func (uc *ConversationUseCase) CreatePrivate(ctx context.Context, requesterID, otherUserID string) (*domain.ConversationView, error) {
	if requesterID == otherUserID {
		return nil, errprocess.Conflict("cannot start a conversation with yourself")
	}

	if err := uc.requireActiveUser(ctx, otherUserID); err != nil {
		return nil, err
	}

	pairKey := domain.PairKeyFor(requesterID, otherUserID)
	now := time.Now().UTC()

	// 已成立且沒被封存的房走快速路徑, 不進 transaction
	if existing, err := uc.repos.Conversation.FindPrivateByPairKey(ctx, pairKey); err != nil {
		return nil, err
	} else if existing != nil && existing.Status == domain.ConversationAccepted {
		m, err := uc.repos.Membership.FindActive(ctx, existing.ID, requesterID)
		if err != nil {
			return nil, err
		}
		if m != nil && !m.IsArchived {
			return uc.GetDetails(ctx, existing.ID, requesterID, true)
		}
	}

	var convID string
	var requestPending bool

	txFn := func(r repository.Repositories) error {
		existing, err := r.Conversation.FindPrivateByPairKeyForUpdate(ctx, pairKey)
		if err != nil {
			return err
		}

		// 不存在 → 新建 pending
		if existing == nil {
			conv := &domain.Conversation{
				ID:             uuid.New().String(),
				Kind:           domain.ConversationKindPrivate,
				Status:         domain.ConversationPending,
				PairKey:        &pairKey,
				CreatedBy:      requesterID,
				LastActivityAt: now,
				IsActive:       true,
			}
			if err := r.Conversation.Create(ctx, conv); err != nil {
				return err
			}
			members := []*domain.Membership{
				newMembership(conv.ID, requesterID, domain.RoleMember, nil, now),
				newMembership(conv.ID, otherUserID, domain.RoleMember, &requesterID, now),
			}
			if err := r.Membership.CreateBatch(ctx, members); err != nil {
				return err
			}
			convID = conv.ID
			requestPending = true
			return nil
		}

		convID = existing.ID

		switch existing.Status {
		case domain.ConversationRejected:
			// reopen: 同一 row 轉回 pending, createdBy 換成新的請求者
			existing.Status = domain.ConversationPending
			existing.CreatedBy = requesterID
			existing.LastActivityAt = now
			if err := r.Conversation.Save(ctx, existing); err != nil {
				return err
			}
			requestPending = true
		case domain.ConversationPending:
			// 另一方也發了請求 → 視為雙方同意
			if existing.CreatedBy != requesterID {
				existing.Status = domain.ConversationAccepted
				existing.LastActivityAt = now
				if err := r.Conversation.Save(ctx, existing); err != nil {
					return err
				}
			}
		case domain.ConversationAccepted:
			// 已成立, 原樣返回
		}

		// 兩邊之前 soft-leave 或封存過的 membership 都要叫醒
		if err := reactivateMembership(ctx, r, existing.ID, requesterID); err != nil {
			return err
		}
		return reactivateMembership(ctx, r, existing.ID, otherUserID)
	}

	err := uc.tx.RunInTx(ctx, txFn)
	if repository.IsDuplicateKey(err) {
		// 兩個請求同時首開, 輸掉插入的一方重跑, 走進上面的 reopen/accept 分支
		requestPending = false
		err = uc.tx.RunInTx(ctx, txFn)
	}
	if err != nil {
		return nil, err
	}

	if requestPending {
		uc.notifier.NotifyUser(otherUserID, domain.Event{
			Name:           domain.EventRequestReceived,
			ConversationID: convID,
			ActorID:        requesterID,
			Timestamp:      now,
		})
	}

	// membership write 可能尚未對讀可見, 跳過成員檢查
	return uc.GetDetails(ctx, convID, requesterID, true)
}

// CreateGroup create a group conversation, no request flow, accepted from birth
func (uc *ConversationUseCase) CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (*domain.ConversationView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errprocess.Validation("group name cannot be empty")
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:             uuid.New().String(),
		Kind:           domain.ConversationKindGroup,
		Status:         domain.ConversationAccepted,
		Name:           name,
		Description:    description,
		CreatedBy:      creatorID,
		LastActivityAt: now,
		IsActive:       true,
	}

	members := []*domain.Membership{
		newMembership(conv.ID, creatorID, domain.RoleOwner, nil, now),
	}
	for _, id := range pkg.Dedupe(memberIDs, creatorID) {
		members = append(members, newMembership(conv.ID, id, domain.RoleMember, &creatorID, now))
	}

	err := uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		if err := r.Conversation.Create(ctx, conv); err != nil {
			return err
		}
		return r.Membership.CreateBatch(ctx, members)
	})
	if err != nil {
		return nil, err
	}

	return uc.GetDetails(ctx, conv.ID, creatorID, true)
}

// Accept move a pending private conversation to accepted
func (uc *ConversationUseCase) Accept(ctx context.Context, convID, userID string) error {
	return uc.resolveRequest(ctx, convID, userID, domain.ConversationAccepted)
}

// Reject move a pending private conversation to rejected
// (之後 CreatePrivate 可以 reopen 它)
func (uc *ConversationUseCase) Reject(ctx context.Context, convID, userID string) error {
	return uc.resolveRequest(ctx, convID, userID, domain.ConversationRejected)
}

func (uc *ConversationUseCase) resolveRequest(ctx context.Context, convID, userID string, to domain.ConversationStatus) error {
	return uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		conv, err := r.Conversation.FindByIDForUpdate(ctx, convID)
		if err != nil {
			return err
		}
		if conv == nil {
			return errprocess.NotFound("conversation not found")
		}
		m, err := r.Membership.FindActive(ctx, convID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return errprocess.Forbidden("not a member of this conversation")
		}
		if conv.Status != domain.ConversationPending {
			return errprocess.InvalidState("conversation request is not pending")
		}
		conv.Status = to
		return r.Conversation.Save(ctx, conv)
	})
}

// ListForUser active-membership conversations, newest activity first,
// annotated with unread count and last message
func (uc *ConversationUseCase) ListForUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.ConversationView, error) {
	convs, err := uc.repos.Conversation.ListForUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	views := make([]domain.ConversationView, 0, len(convs))
	for i := range convs {
		view, err := uc.buildView(ctx, &convs[i], userID)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetDetails one conversation view for one caller
// skipMemberCheck 只給剛建完房的內部呼叫用
func (uc *ConversationUseCase) GetDetails(ctx context.Context, convID, userID string, skipMemberCheck bool) (*domain.ConversationView, error) {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.NotFound("conversation not found")
	}
	if !skipMemberCheck {
		m, err := uc.repos.Membership.FindActive(ctx, convID, userID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errprocess.Forbidden("not a member of this conversation")
		}
	}
	return uc.buildView(ctx, conv, userID)
}

// DeleteForUser private → archive the caller's own view only,
// group → delegate to GroupUseCase.Leave
// 封存不動 membership 本身, 房間還收得到訊息, include_archived 列表也找得回來
func (uc *ConversationUseCase) DeleteForUser(ctx context.Context, convID, userID string) error {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if conv == nil {
		return errprocess.NotFound("conversation not found")
	}

	if conv.IsGroup() {
		return uc.group.Leave(ctx, convID, userID)
	}

	return uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		m, err := r.Membership.FindActiveForUpdate(ctx, convID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return errprocess.Forbidden("not a member of this conversation")
		}
		m.IsArchived = true
		return r.Membership.Save(ctx, m)
	})
}

func (uc *ConversationUseCase) buildView(ctx context.Context, conv *domain.Conversation, userID string) (*domain.ConversationView, error) {
	members, err := resolveMembers(ctx, uc.repos.Membership, uc.identity, conv.ID)
	if err != nil {
		return nil, err
	}

	var last *domain.Message
	if conv.LastMessageID != nil {
		last, err = uc.repos.Message.FindByID(ctx, *conv.LastMessageID)
		if err != nil {
			return nil, err
		}
	}

	unread, err := uc.repos.Message.UnreadCount(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}

	return &domain.ConversationView{
		Conversation: *conv,
		Members:      members,
		LastMessage:  last,
		UnreadCount:  unread,
	}, nil
}

func (uc *ConversationUseCase) requireActiveUser(ctx context.Context, userID string) error {
	exists, err := uc.identity.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return errprocess.NotFound("user not found")
	}
	active, err := uc.identity.IsActive(ctx, userID)
	if err != nil {
		return err
	}
	if !active {
		return errprocess.NotFound("user is not active")
	}
	return nil
}

func newMembership(convID, userID string, role domain.Role, invitedBy *string, at time.Time) *domain.Membership {
	return &domain.Membership{
		ID:             uuid.New().String(),
		ConversationID: convID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       at,
		InvitedBy:      invitedBy,
		NotifyEnabled:  true,
	}
}

// reactivateMembership clear LeftAt and the archive flag, no-op when already live
func reactivateMembership(ctx context.Context, r repository.Repositories, convID, userID string) error {
	m, err := r.Membership.FindAny(ctx, convID, userID)
	if err != nil || m == nil {
		return err
	}
	if m.IsActive() && !m.IsArchived {
		return nil
	}
	m.LeftAt = nil
	m.IsArchived = false
	return r.Membership.Save(ctx, m)
}
