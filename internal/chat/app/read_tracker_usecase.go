package app

import (
	"context"
	"time"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
	errprocess "chat_core_service/pkg/err"
)

// ReadTrackerUseCase 已讀標記與未讀統計
// receipt row 是唯一的真相, membership 上的 last_read 只是 back-reference
type ReadTrackerUseCase struct {
	repos repository.Repositories
	tx    repository.TxRunner
}

// NewReadTrackerUseCase init read tracker use case
func NewReadTrackerUseCase(repos repository.Repositories, tx repository.TxRunner) *ReadTrackerUseCase {
	return &ReadTrackerUseCase{repos: repos, tx: tx}
}

// MarkMessageRead idempotent per (message,user), author never owes a receipt
func (uc *ReadTrackerUseCase) MarkMessageRead(ctx context.Context, messageID, userID string) (*domain.MarkReadResult, error) {
	msg, err := uc.repos.Message.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errprocess.NotFound("message not found")
	}

	m, err := uc.repos.Membership.FindActive(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errprocess.Forbidden("not a member of this conversation")
	}

	// 自己的訊息視同已讀
	if msg.SenderID == userID {
		return &domain.MarkReadResult{AlreadyRead: true}, nil
	}

	now := time.Now().UTC()
	created, err := uc.repos.Receipt.Insert(ctx, &domain.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if created {
		uc.updateBackReference(ctx, m, messageID, now)
		uc.promoteStatuses(ctx, msg.ConversationID, []*domain.Message{msg})
	}
	return &domain.MarkReadResult{AlreadyRead: !created}, nil
}

// MarkConversationRead bulk mark every other-authored message,
// optionally bounded by throughMessageID's createdAt
func (uc *ReadTrackerUseCase) MarkConversationRead(ctx context.Context, convID, userID string, throughMessageID *string) (*domain.MarkConversationReadResult, error) {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.NotFound("conversation not found")
	}
	m, err := uc.repos.Membership.FindActive(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errprocess.Forbidden("not a member of this conversation")
	}

	var through *time.Time
	if throughMessageID != nil {
		bound, err := uc.repos.Message.FindByID(ctx, *throughMessageID)
		if err != nil {
			return nil, err
		}
		if bound == nil || bound.ConversationID != convID {
			return nil, errprocess.Validation("through message is not in this conversation")
		}
		through = &bound.CreatedAt
	}

	unread, err := uc.repos.Message.ListUnread(ctx, convID, userID, through)
	if err != nil {
		return nil, err
	}
	total, err := uc.repos.Message.CountFromOthers(ctx, convID, userID, through)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	newly := 0
	var lastMarked string
	var marked []*domain.Message
	for i := range unread {
		created, err := uc.repos.Receipt.Insert(ctx, &domain.ReadReceipt{
			MessageID: unread[i].ID,
			UserID:    userID,
			ReadAt:    now,
		})
		if err != nil {
			return nil, err
		}
		if created {
			newly++
			lastMarked = unread[i].ID
			marked = append(marked, &unread[i])
		}
	}

	if lastMarked != "" {
		uc.updateBackReference(ctx, m, lastMarked, now)
		uc.promoteStatuses(ctx, convID, marked)
	}

	return &domain.MarkConversationReadResult{
		NewlyMarked: newly,
		AlreadyRead: int(total) - newly,
	}, nil
}

// UnreadCount canonical receipt-based unread definition
func (uc *ReadTrackerUseCase) UnreadCount(ctx context.Context, convID, userID string) (int64, error) {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return 0, err
	}
	if conv == nil {
		return 0, errprocess.NotFound("conversation not found")
	}
	m, err := uc.repos.Membership.FindActive(ctx, convID, userID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, errprocess.Forbidden("not a member of this conversation")
	}
	return uc.repos.Message.UnreadCount(ctx, convID, userID)
}

// ReadersOf receipt list for one message, earliest reader first
func (uc *ReadTrackerUseCase) ReadersOf(ctx context.Context, messageID string) ([]domain.ReadReceipt, error) {
	msg, err := uc.repos.Message.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errprocess.NotFound("message not found")
	}
	return uc.repos.Receipt.ListByMessage(ctx, messageID)
}

// updateBackReference lookup-only pointer on the membership, best effort
func (uc *ReadTrackerUseCase) updateBackReference(ctx context.Context, m *domain.Membership, messageID string, at time.Time) {
	m.LastReadMessageID = &messageID
	m.LastReadAt = &at
	_ = uc.repos.Membership.Save(ctx, m)
}

// promoteStatuses 其他成員都讀過的訊息標成 read, best effort
func (uc *ReadTrackerUseCase) promoteStatuses(ctx context.Context, convID string, msgs []*domain.Message) {
	if len(msgs) == 0 {
		return
	}
	members, err := uc.repos.Membership.CountActive(ctx, convID)
	if err != nil {
		return
	}
	for _, msg := range msgs {
		if msg.Status == domain.MessageStatusRead {
			continue
		}
		readers, err := uc.repos.Receipt.CountByMessage(ctx, msg.ID)
		if err != nil {
			return
		}
		if readers >= members-1 {
			msg.Status = domain.MessageStatusRead
			_ = uc.repos.Message.Save(ctx, msg)
		}
	}
}
