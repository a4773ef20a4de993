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

func groupConv(id string) *domain.Conversation {
	return &domain.Conversation{
		ID:       id,
		Kind:     domain.ConversationKindGroup,
		Status:   domain.ConversationAccepted,
		Name:     "team",
		IsActive: true,
	}
}

func membership(convID, userID string, role domain.Role, joinedAt time.Time) *domain.Membership {
	return &domain.Membership{
		ID:             convID + ":" + userID,
		ConversationID: convID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       joinedAt,
	}
}

// owner 離開後, 年資最深的 admin 接手
func TestGroupUseCase_Leave_TransfersOwnershipToAdmin(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-72 * time.Hour)

	env := newTestEnv()
	env.conv.On("FindByIDForUpdate", ctx, "conv-1").Return(groupConv("conv-1"), nil)

	owner := membership("conv-1", "owner", domain.RoleOwner, base)
	env.member.On("FindActiveForUpdate", ctx, "conv-1", "owner").Return(owner, nil)
	env.member.On("Save", ctx, mock.Anything).Return(nil)

	// joined_at asc, member 比 admin 早進來, 但 admin 優先
	oldMember := membership("conv-1", "elder", domain.RoleMember, base.Add(1*time.Hour))
	admin := membership("conv-1", "deputy", domain.RoleAdmin, base.Add(5*time.Hour))
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{*oldMember, *admin}, nil)

	uc := env.groupUC()
	err := uc.Leave(ctx, "conv-1", "owner")

	assert.NoError(t, err)
	assert.NotNil(t, owner.LeftAt)

	// Save 兩次: 離開者與新 owner
	saved := make([]*domain.Membership, 0)
	for _, call := range env.member.Calls {
		if call.Method == "Save" {
			saved = append(saved, call.Arguments.Get(1).(*domain.Membership))
		}
	}
	assert.Len(t, saved, 2)
	assert.Equal(t, "deputy", saved[1].UserID)
	assert.Equal(t, domain.RoleOwner, saved[1].Role)

	events := env.notifier.Named(domain.EventMemberLeft)
	assert.Len(t, events, 1)
	assert.Equal(t, "owner", events[0].ActorID)
}

// 沒有 admin 時輪到年資最深的 member
func TestGroupUseCase_Leave_TransfersOwnershipToElder(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-72 * time.Hour)

	env := newTestEnv()
	env.conv.On("FindByIDForUpdate", ctx, "conv-1").Return(groupConv("conv-1"), nil)

	owner := membership("conv-1", "owner", domain.RoleOwner, base)
	env.member.On("FindActiveForUpdate", ctx, "conv-1", "owner").Return(owner, nil)
	env.member.On("Save", ctx, mock.Anything).Return(nil)

	elder := membership("conv-1", "elder", domain.RoleMember, base.Add(1*time.Hour))
	junior := membership("conv-1", "junior", domain.RoleMember, base.Add(9*time.Hour))
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{*elder, *junior}, nil)

	uc := env.groupUC()
	err := uc.Leave(ctx, "conv-1", "owner")

	assert.NoError(t, err)
	var promoted *domain.Membership
	for _, call := range env.member.Calls {
		if call.Method == "Save" {
			promoted = call.Arguments.Get(1).(*domain.Membership)
		}
	}
	assert.Equal(t, "elder", promoted.UserID)
	assert.Equal(t, domain.RoleOwner, promoted.Role)
}

// 最後一人離開, 房間轉 inactive, 不發通知
func TestGroupUseCase_Leave_LastMemberDeactivates(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	conv := groupConv("conv-1")
	env.conv.On("FindByIDForUpdate", ctx, "conv-1").Return(conv, nil)

	owner := membership("conv-1", "owner", domain.RoleOwner, time.Now().UTC().Add(-time.Hour))
	env.member.On("FindActiveForUpdate", ctx, "conv-1", "owner").Return(owner, nil)
	env.member.On("Save", ctx, owner).Return(nil)
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{}, nil)
	env.conv.On("Save", ctx, conv).Return(nil)

	uc := env.groupUC()
	err := uc.Leave(ctx, "conv-1", "owner")

	assert.NoError(t, err)
	assert.False(t, conv.IsActive)
	assert.Empty(t, env.notifier.Events)
	env.conv.AssertExpectations(t)
}

// 非成員離開是 Forbidden
func TestGroupUseCase_Leave_NotMember(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	env := newTestEnv()
	env.conv.On("FindByIDForUpdate", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActiveForUpdate", ctx, "conv-1", "stranger").Return(nil, nil)

	uc := env.groupUC()
	err := uc.Leave(ctx, "conv-1", "stranger")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
}

// admin 不可改角色, 只有 owner 可以
func TestGroupUseCase_UpdateMemberRole_AdminForbidden(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "deputy").Return(
		membership("conv-1", "deputy", domain.RoleAdmin, base), nil)

	uc := env.groupUC()
	err := uc.UpdateMemberRole(ctx, "conv-1", "deputy", "user-b", domain.RoleAdmin)

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
}

// owner 改角色成功
func TestGroupUseCase_UpdateMemberRole_OwnerPromotes(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)
	target := membership("conv-1", "user-b", domain.RoleMember, base)
	env.member.On("FindActive", ctx, "conv-1", "user-b").Return(target, nil)
	env.member.On("Save", ctx, target).Return(nil)

	uc := env.groupUC()
	err := uc.UpdateMemberRole(ctx, "conv-1", "owner", "user-b", domain.RoleAdmin)

	assert.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, target.Role)
	env.member.AssertExpectations(t)
}

// owner 角色不能由這條路徑指派
func TestGroupUseCase_UpdateMemberRole_OwnerRoleRejected(t *testing.T) {
	logger.SetNewNop()
	env := newTestEnv()
	uc := env.groupUC()

	err := uc.UpdateMemberRole(context.Background(), "conv-1", "owner", "user-b", domain.RoleOwner)

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
}

// 已在群裡的 id 靜默跳過
func TestGroupUseCase_AddMembers_SkipsExisting(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)

	env.member.On("FindActive", ctx, "conv-1", "user-b").Return(
		membership("conv-1", "user-b", domain.RoleMember, base), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-c").Return(nil, nil)
	env.member.On("FindAny", ctx, "conv-1", "user-c").Return(nil, nil)
	env.member.On("Create", ctx, mock.Anything).Return(nil)

	uc := env.groupUC()
	added, err := uc.AddMembers(ctx, "conv-1", "owner", []string{"user-b", "user-c"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"user-c"}, added)
	env.member.AssertExpectations(t)
}

// 之前退group的人再加回來, 舊 row 被叫醒
func TestGroupUseCase_AddMembers_ReactivatesLeftMember(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)

	left := time.Now().UTC().Add(-10 * time.Minute)
	old := membership("conv-1", "user-b", domain.RoleAdmin, base)
	old.LeftAt = &left
	env.member.On("FindActive", ctx, "conv-1", "user-b").Return(nil, nil)
	env.member.On("FindAny", ctx, "conv-1", "user-b").Return(old, nil)
	env.member.On("Save", ctx, old).Return(nil)

	uc := env.groupUC()
	added, err := uc.AddMembers(ctx, "conv-1", "owner", []string{"user-b"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"user-b"}, added)
	assert.Nil(t, old.LeftAt)
	// 回鍋者不保留舊角色
	assert.Equal(t, domain.RoleMember, old.Role)
}

// 全部都已在群裡算 Conflict
func TestGroupUseCase_AddMembers_AllExisting(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)
	env.member.On("FindActive", ctx, "conv-1", "user-b").Return(
		membership("conv-1", "user-b", domain.RoleMember, base), nil)

	uc := env.groupUC()
	_, err := uc.AddMembers(ctx, "conv-1", "owner", []string{"user-b"})

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindConflict, errprocess.KindOf(err))
}

// 只有 owner 能踢 owner
func TestGroupUseCase_RemoveMember_OwnerProtected(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "deputy").Return(
		membership("conv-1", "deputy", domain.RoleAdmin, base), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)

	uc := env.groupUC()
	err := uc.RemoveMember(ctx, "conv-1", "deputy", "owner")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
}

// 更新設定但什麼都沒變是 Validation
func TestGroupUseCase_UpdateSettings_NoChange(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	env.member.On("FindActive", ctx, "conv-1", "owner").Return(
		membership("conv-1", "owner", domain.RoleOwner, base), nil)

	name := "team" // 與現值相同
	uc := env.groupUC()
	err := uc.UpdateSettings(ctx, "conv-1", "owner", &name, nil)

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
}

// 權限表跟著角色走
func TestGroupUseCase_GetDetails_Permissions(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	env := newTestEnv()
	env.conv.On("FindByID", ctx, "conv-1").Return(groupConv("conv-1"), nil)
	admin := membership("conv-1", "deputy", domain.RoleAdmin, base)
	env.member.On("FindActive", ctx, "conv-1", "deputy").Return(admin, nil)
	env.member.On("ActiveMembers", ctx, "conv-1").Return([]domain.Membership{*admin}, nil)
	env.identity.On("DisplayName", ctx, "deputy").Return("Deputy", nil)

	uc := env.groupUC()
	view, err := uc.GetDetails(ctx, "conv-1", "deputy")

	assert.NoError(t, err)
	assert.True(t, view.Permissions.CanAddMembers)
	assert.True(t, view.Permissions.CanUpdateSettings)
	assert.False(t, view.Permissions.CanUpdateRoles)
}
