package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
	errprocess "chat_core_service/pkg/err"
)

// SendOptions optional message attributes
type SendOptions struct {
	Type      domain.MessageType
	ReplyToID *string
	Metadata  string
}

// MessageUseCase 負責訊息的建立/編輯/刪除/查詢
type MessageUseCase struct {
	repos    repository.Repositories
	identity domain.IdentityProvider
	notifier domain.Notifier
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	repos repository.Repositories,
	identity domain.IdentityProvider,
	notifier domain.Notifier,
) *MessageUseCase {
	return &MessageUseCase{
		repos:    repos,
		identity: identity,
		notifier: notifier,
	}
}

// Send store one message and bump the conversation's last activity
func (uc *MessageUseCase) Send(ctx context.Context, senderID, convID, content string, opts SendOptions) (*domain.MessageView, error) {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.NotFound("conversation not found")
	}

	m, err := uc.repos.Membership.FindActive(ctx, convID, senderID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errprocess.Forbidden("not a member of this conversation")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errprocess.Validation("message content cannot be empty")
	}

	msgType := opts.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, errprocess.Validation("unknown message type")
	}

	// reply 只能指向同一個 conversation 內的訊息
	var replyTo *domain.Message
	if opts.ReplyToID != nil {
		replyTo, err = uc.repos.Message.FindByID(ctx, *opts.ReplyToID)
		if err != nil {
			return nil, err
		}
		if replyTo == nil || replyTo.ConversationID != convID {
			return nil, errprocess.Validation("reply target is not in this conversation")
		}
	}

	now := time.Now().UTC()
	metadata := opts.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Status:         domain.MessageStatusSent,
		ReplyToID:      opts.ReplyToID,
		Metadata:       metadata,
		CreatedAt:      now,
	}
	if err := uc.repos.Message.Create(ctx, msg); err != nil {
		return nil, err
	}

	// last-writer-wins, 併發 send 互相覆蓋沒關係
	if err := uc.repos.Conversation.SetLastMessage(ctx, convID, msg.ID, now); err != nil {
		return nil, err
	}

	return &domain.MessageView{
		Message:        *msg,
		SenderName:     displayNameOrID(ctx, uc.identity, senderID),
		ReplyTo:        replyTo,
		IsReadByCaller: true, // 作者視同已讀
	}, nil
}

// Edit author-only content change inside the 24h window
// edited 欄位在這裡一次設好, 不靠 persistence hook
func (uc *MessageUseCase) Edit(ctx context.Context, messageID, userID, newContent string) (*domain.Message, error) {
	msg, err := uc.repos.Message.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errprocess.NotFound("message not found")
	}
	if msg.SenderID != userID {
		return nil, errprocess.Forbidden("only the author can edit a message")
	}

	now := time.Now().UTC()
	if !msg.Editable(now) {
		return nil, errprocess.Gone("edit window has elapsed")
	}

	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, errprocess.Validation("message content cannot be empty")
	}

	msg.Content = newContent
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := uc.repos.Message.Save(ctx, msg); err != nil {
		return nil, err
	}

	uc.notifyMembers(ctx, msg.ConversationID, domain.Event{
		Name:           domain.EventMessageEdited,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		ActorID:        userID,
		Timestamp:      now,
	})
	return msg, nil
}

// Delete author-only hard delete, receipts cascade with the row
func (uc *MessageUseCase) Delete(ctx context.Context, messageID, userID string) error {
	msg, err := uc.repos.Message.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errprocess.NotFound("message not found")
	}
	if msg.SenderID != userID {
		return errprocess.Forbidden("only the author can delete a message")
	}

	if err := uc.repos.Message.Delete(ctx, messageID); err != nil {
		return err
	}

	uc.notifyMembers(ctx, msg.ConversationID, domain.Event{
		Name:           domain.EventMessageDeleted,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		ActorID:        userID,
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

// ListForConversation chronological page annotated with read state per caller
func (uc *MessageUseCase) ListForConversation(ctx context.Context, convID, userID string, opts domain.MessageListOptions) ([]domain.MessageView, error) {
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

	msgs, err := uc.repos.Message.List(ctx, convID, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
	}
	readers, err := uc.repos.Receipt.ListByMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	readSet, err := uc.repos.Receipt.ReadSetForUser(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	// reply 目標與 sender 名稱各查一次就好
	replyCache := make(map[string]*domain.Message)
	nameCache := make(map[string]string)

	views := make([]domain.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		rs := readers[msg.ID]
		// 自己的訊息視同已讀
		isRead := msg.SenderID == userID || readSet[msg.ID]

		var replyTo *domain.Message
		if msg.ReplyToID != nil {
			var ok bool
			replyTo, ok = replyCache[*msg.ReplyToID]
			if !ok {
				replyTo, err = uc.repos.Message.FindByID(ctx, *msg.ReplyToID)
				if err != nil {
					return nil, err
				}
				replyCache[*msg.ReplyToID] = replyTo
			}
		}

		name, ok := nameCache[msg.SenderID]
		if !ok {
			name = displayNameOrID(ctx, uc.identity, msg.SenderID)
			nameCache[msg.SenderID] = name
		}

		views = append(views, domain.MessageView{
			Message:        msg,
			SenderName:     name,
			ReplyTo:        replyTo,
			IsReadByCaller: isRead,
			ReadByCount:    int64(len(rs)),
			Readers:        rs,
		})
	}
	return views, nil
}

// notifyMembers best-effort fan-out to the conversation's active members
func (uc *MessageUseCase) notifyMembers(ctx context.Context, convID string, event domain.Event) {
	members, err := uc.repos.Membership.ActiveMembers(ctx, convID)
	if err != nil {
		return
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	uc.notifier.NotifyConversation(convID, ids, event)
}
