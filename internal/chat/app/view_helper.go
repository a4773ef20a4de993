package app

import (
	"context"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/internal/chat/repository"
)

// resolveMembers active member list with display names from the identity provider
// 查不到名字就退回 user id, 不讓顯示問題擋住主流程
func resolveMembers(ctx context.Context, repo repository.MembershipRepository, identity domain.IdentityProvider, convID string) ([]domain.MemberView, error) {
	ms, err := repo.ActiveMembers(ctx, convID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.MemberView, 0, len(ms))
	for _, m := range ms {
		views = append(views, domain.MemberView{
			UserID:      m.UserID,
			DisplayName: displayNameOrID(ctx, identity, m.UserID),
			Role:        m.Role,
			JoinedAt:    m.JoinedAt,
			LeftAt:      m.LeftAt,
		})
	}
	return views, nil
}

func displayNameOrID(ctx context.Context, identity domain.IdentityProvider, userID string) string {
	name, err := identity.DisplayName(ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	return name
}
