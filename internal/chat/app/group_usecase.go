package app

import (
	"context"
	"strings"
	"time"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
	"chat_core_service/pkg"
	errprocess "chat_core_service/pkg/err"
)

// GroupUseCase 群組成員與角色管理
type GroupUseCase struct {
	repos    repository.Repositories
	tx       repository.TxRunner
	identity domain.IdentityProvider
	notifier domain.Notifier
}

// NewGroupUseCase init group use case
func NewGroupUseCase(
	repos repository.Repositories,
	tx repository.TxRunner,
	identity domain.IdentityProvider,
	notifier domain.Notifier,
) *GroupUseCase {
	return &GroupUseCase{
		repos:    repos,
		tx:       tx,
		identity: identity,
		notifier: notifier,
	}
}

// AddMembers add members to a group, already-active ids are silently skipped
// 全部都已在群裡才算 Conflict
func (uc *GroupUseCase) AddMembers(ctx context.Context, convID, actingUserID string, newUserIDs []string) ([]string, error) {
	ids := pkg.Dedupe(newUserIDs)
	if len(ids) == 0 {
		return nil, errprocess.Validation("no members given")
	}

	var added []string
	err := uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		_, acting, err := uc.requireManager(ctx, r, convID, actingUserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, id := range ids {
			existing, err := r.Membership.FindActive(ctx, convID, id)
			if err != nil {
				return err
			}
			if existing != nil {
				continue // 已在群裡, 跳過
			}
			// 之前離開過的話叫醒舊 row, 否則開新 row
			old, err := r.Membership.FindAny(ctx, convID, id)
			if err != nil {
				return err
			}
			if old != nil {
				old.LeftAt = nil
				old.Role = domain.RoleMember
				old.InvitedBy = &acting.UserID
				if err := r.Membership.Save(ctx, old); err != nil {
					return err
				}
			} else {
				if err := r.Membership.Create(ctx, newMembership(convID, id, domain.RoleMember, &acting.UserID, now)); err != nil {
					return err
				}
			}
			added = append(added, id)
		}

		if len(added) == 0 {
			return errprocess.Conflict("all given users are already members")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMember soft-leave a member, only owner may remove the owner
func (uc *GroupUseCase) RemoveMember(ctx context.Context, convID, actingUserID, targetUserID string) error {
	if actingUserID == targetUserID {
		// 踢自己等同離開, 走轉移 owner 的路徑
		return uc.Leave(ctx, convID, actingUserID)
	}

	return uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		_, acting, err := uc.requireManager(ctx, r, convID, actingUserID)
		if err != nil {
			return err
		}

		target, err := r.Membership.FindActive(ctx, convID, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return errprocess.InvalidState("target user is not an active member")
		}
		if target.Role == domain.RoleOwner && acting.Role != domain.RoleOwner {
			return errprocess.Forbidden("only the owner can remove the owner")
		}

		now := time.Now().UTC()
		target.LeftAt = &now
		return r.Membership.Save(ctx, target)
	})
}

// UpdateMemberRole owner-only, owner role itself is never assigned here
// (ownership 只透過 Leave 的轉移路徑移動)
func (uc *GroupUseCase) UpdateMemberRole(ctx context.Context, convID, actingUserID, targetUserID string, newRole domain.Role) error {
	if newRole != domain.RoleMember && newRole != domain.RoleAdmin {
		return errprocess.Validation("role must be member or admin")
	}

	return uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		conv, err := r.Conversation.FindByID(ctx, convID)
		if err != nil {
			return err
		}
		if conv == nil {
			return errprocess.NotFound("conversation not found")
		}
		if !conv.IsGroup() {
			return errprocess.InvalidState("not a group conversation")
		}

		acting, err := r.Membership.FindActive(ctx, convID, actingUserID)
		if err != nil {
			return err
		}
		if acting == nil || acting.Role != domain.RoleOwner {
			return errprocess.Forbidden("only the owner can change roles")
		}

		target, err := r.Membership.FindActive(ctx, convID, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return errprocess.InvalidState("target user is not an active member")
		}

		target.Role = newRole
		return r.Membership.Save(ctx, target)
	})
}

// UpdateSettings change group name/description, at least one field must change
func (uc *GroupUseCase) UpdateSettings(ctx context.Context, convID, actingUserID string, name, description *string) error {
	return uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		conv, _, err := uc.requireManager(ctx, r, convID, actingUserID)
		if err != nil {
			return err
		}

		changed := false
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return errprocess.Validation("group name cannot be empty")
			}
			if trimmed != conv.Name {
				conv.Name = trimmed
				changed = true
			}
		}
		if description != nil && *description != conv.Description {
			conv.Description = *description
			changed = true
		}
		if !changed {
			return errprocess.Validation("nothing to update")
		}
		return r.Conversation.Save(ctx, conv)
	})
}

// Leave soft-leave the caller, transferring ownership when the owner departs
// 整段單一 transaction + conversation row 上鎖, 兩個併發 leave 不會選出兩個 owner
func (uc *GroupUseCase) Leave(ctx context.Context, convID, userID string) error {
	var remainingIDs []string

	err := uc.tx.RunInTx(ctx, func(r repository.Repositories) error {
		conv, err := r.Conversation.FindByIDForUpdate(ctx, convID)
		if err != nil {
			return err
		}
		if conv == nil {
			return errprocess.NotFound("conversation not found")
		}
		if !conv.IsGroup() {
			return errprocess.InvalidState("not a group conversation")
		}

		m, err := r.Membership.FindActiveForUpdate(ctx, convID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return errprocess.Forbidden("not a member of this conversation")
		}

		now := time.Now().UTC()
		m.LeftAt = &now
		if err := r.Membership.Save(ctx, m); err != nil {
			return err
		}

		remaining, err := r.Membership.ActiveMembers(ctx, convID)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			// 沒人了, 房間留著當歷史, 標記 inactive
			conv.IsActive = false
			return r.Conversation.Save(ctx, conv)
		}

		for _, rm := range remaining {
			remainingIDs = append(remainingIDs, rm.UserID)
		}

		if m.Role == domain.RoleOwner {
			next := electOwner(remaining)
			next.Role = domain.RoleOwner
			if err := r.Membership.Save(ctx, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(remainingIDs) > 0 {
		uc.notifier.NotifyConversation(convID, remainingIDs, domain.Event{
			Name:           domain.EventMemberLeft,
			ConversationID: convID,
			ActorID:        userID,
			Timestamp:      time.Now().UTC(),
		})
	}
	return nil
}

// GetDetails member list with display names plus the caller's permissions
func (uc *GroupUseCase) GetDetails(ctx context.Context, convID, userID string) (*domain.GroupDetailView, error) {
	conv, err := uc.repos.Conversation.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.NotFound("conversation not found")
	}
	if !conv.IsGroup() {
		return nil, errprocess.InvalidState("not a group conversation")
	}

	caller, err := uc.repos.Membership.FindActive(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, errprocess.Forbidden("not a member of this conversation")
	}

	members, err := resolveMembers(ctx, uc.repos.Membership, uc.identity, convID)
	if err != nil {
		return nil, err
	}

	return &domain.GroupDetailView{
		Conversation: *conv,
		Members:      members,
		Permissions:  domain.PermissionsFor(caller.Role),
	}, nil
}

// requireManager load the group and the acting admin/owner membership
func (uc *GroupUseCase) requireManager(ctx context.Context, r repository.Repositories, convID, actingUserID string) (*domain.Conversation, *domain.Membership, error) {
	conv, err := r.Conversation.FindByID(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, errprocess.NotFound("conversation not found")
	}

	acting, err := r.Membership.FindActive(ctx, convID, actingUserID)
	if err != nil {
		return nil, nil, err
	}
	if acting == nil || !acting.Role.CanManage() {
		return nil, nil, errprocess.Forbidden("admin or owner role required")
	}

	if !conv.IsGroup() {
		return nil, nil, errprocess.InvalidState("not a group conversation")
	}
	return conv, acting, nil
}

// electOwner longest-tenured admin first, otherwise longest-tenured member
// members 已按 joined_at asc 排序
func electOwner(members []domain.Membership) *domain.Membership {
	for i := range members {
		if members[i].Role == domain.RoleAdmin {
			return &members[i]
		}
	}
	return &members[0]
}
