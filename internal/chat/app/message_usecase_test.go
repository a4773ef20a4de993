package app

import (
	"context"
	"testing"
	"time"

	"chat_core_service/internal/chat/domain"
	errprocess "chat_core_service/pkg/err"
	"chat_core_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// 測試 Send
func TestMessageUseCase_Send(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-a").Return(
		membership("conv-1", "user-a", domain.RoleMember, time.Now().UTC()), nil)

	var created *domain.Message
	env.message.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Message)
	}).Return(nil)
	env.conv.On("SetLastMessage", ctx, "conv-1", mock.Anything, mock.Anything).Return(nil)
	env.identity.On("DisplayName", ctx, "user-a").Return("Alice", nil)

	uc := env.messageUC()
	view, err := uc.Send(ctx, "user-a", "conv-1", "  hello  ", SendOptions{})

	assert.NoError(t, err)
	assert.Equal(t, "hello", created.Content)
	assert.Equal(t, domain.MessageTypeText, created.Type) // 預設 text
	assert.Equal(t, "Alice", view.SenderName)
	assert.True(t, view.IsReadByCaller)
	env.message.AssertExpectations(t)
	env.conv.AssertExpectations(t)
}

// reply 目標在別的 conversation 是 Validation
func TestMessageUseCase_Send_ReplyCrossConversation(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-a").Return(
		membership("conv-1", "user-a", domain.RoleMember, time.Now().UTC()), nil)
	replyTo := "msg-elsewhere"
	env.message.On("FindByID", ctx, replyTo).Return(&domain.Message{
		ID:             replyTo,
		ConversationID: "conv-2",
	}, nil)

	uc := env.messageUC()
	_, err := uc.Send(ctx, "user-a", "conv-1", "hello", SendOptions{ReplyToID: &replyTo})

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
}

// 空白內容是 Validation
func TestMessageUseCase_Send_EmptyContent(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-a").Return(
		membership("conv-1", "user-a", domain.RoleMember, time.Now().UTC()), nil)

	uc := env.messageUC()
	_, err := uc.Send(ctx, "user-a", "conv-1", "   ", SendOptions{})

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
}

// 視窗內可編輯
func TestMessageUseCase_Edit_InsideWindow(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	msg := &domain.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-a",
		Content:        "before",
		CreatedAt:      time.Now().UTC().Add(-domain.EditWindow + time.Minute),
	}
	env.message.On("FindByID", ctx, "msg-1").Return(msg, nil)
	env.message.On("Save", ctx, msg).Return(nil)
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{
		*membership("conv-1", "user-a", domain.RoleMember, time.Now().UTC()),
	}, nil)

	uc := env.messageUC()
	out, err := uc.Edit(ctx, "msg-1", "user-a", "after")

	assert.NoError(t, err)
	assert.Equal(t, "after", out.Content)
	assert.True(t, out.IsEdited)
	assert.NotNil(t, out.EditedAt)
	assert.Len(t, env.notifier.Named(domain.EventMessageEdited), 1)
}

// 視窗過了是 Gone
func TestMessageUseCase_Edit_WindowElapsed(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.message.On("FindByID", ctx, "msg-1").Return(&domain.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-a",
		CreatedAt:      time.Now().UTC().Add(-domain.EditWindow - time.Minute),
	}, nil)

	uc := env.messageUC()
	_, err := uc.Edit(ctx, "msg-1", "user-a", "after")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindGone, errprocess.KindOf(err))
}

// 只有作者能編輯
func TestMessageUseCase_Edit_NotAuthor(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.message.On("FindByID", ctx, "msg-1").Return(&domain.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-a",
		CreatedAt:      time.Now().UTC(),
	}, nil)

	uc := env.messageUC()
	_, err := uc.Edit(ctx, "msg-1", "user-b", "after")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
}

// 測試 Delete
func TestMessageUseCase_Delete(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.message.On("FindByID", ctx, "msg-1").Return(&domain.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-a",
	}, nil)
	env.message.On("Delete", ctx, "msg-1").Return(nil)
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{
		*membership("conv-1", "user-b", domain.RoleMember, time.Now().UTC()),
	}, nil)

	uc := env.messageUC()
	err := uc.Delete(ctx, "msg-1", "user-a")

	assert.NoError(t, err)
	assert.Len(t, env.notifier.Named(domain.EventMessageDeleted), 1)
	env.message.AssertExpectations(t)
}

// 每一則訊息都帶上呼叫者的已讀狀態
func TestMessageUseCase_ListForConversation_ReadAnnotations(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-b").Return(
		membership("conv-1", "user-b", domain.RoleMember, time.Now().UTC()), nil)

	msgs := []domain.Message{
		{ID: "msg-1", ConversationID: "conv-1", SenderID: "user-a", Content: "read one"},
		{ID: "msg-2", ConversationID: "conv-1", SenderID: "user-a", Content: "unread one"},
		{ID: "msg-3", ConversationID: "conv-1", SenderID: "user-b", Content: "mine"},
	}
	env.message.On("List", ctx, "conv-1", mock.Anything).Return(msgs, nil)
	env.receipt.On("ListByMessageIDs", ctx, []string{"msg-1", "msg-2", "msg-3"}).Return(map[string][]domain.ReadReceipt{
		"msg-1": {{MessageID: "msg-1", UserID: "user-b", ReadAt: time.Now().UTC()}},
	}, nil)
	env.receipt.On("ReadSetForUser", ctx, "user-b", []string{"msg-1", "msg-2", "msg-3"}).Return(map[string]bool{
		"msg-1": true,
	}, nil)
	env.identity.On("DisplayName", ctx, "user-a").Return("Alice", nil)
	env.identity.On("DisplayName", ctx, "user-b").Return("Bob", nil)

	uc := env.messageUC()
	views, err := uc.ListForConversation(ctx, "conv-1", "user-b", domain.MessageListOptions{})

	assert.NoError(t, err)
	assert.Len(t, views, 3)
	assert.True(t, views[0].IsReadByCaller)
	assert.Equal(t, int64(1), views[0].ReadByCount)
	assert.False(t, views[1].IsReadByCaller)
	// 自己的訊息視同已讀
	assert.True(t, views[2].IsReadByCaller)
	// sender 名稱只查一次
	env.identity.AssertNumberOfCalls(t, "DisplayName", 2)
}
