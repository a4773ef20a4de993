package app

import (
	"context"
	"errors"

	"chat_core_service/internal/member/domain"
	"chat_core_service/internal/member/repository"
)

// IdentityUseCase resolve user ids for the chat core
// 實作 chat domain 的 IdentityProvider
type IdentityUseCase struct {
	memberRepo repository.MemberRepository
}

// NewIdentityUseCase init identity use case
func NewIdentityUseCase(memberRepo repository.MemberRepository) *IdentityUseCase {
	return &IdentityUseCase{memberRepo: memberRepo}
}

// Exists user id resolves to a member row
func (uc *IdentityUseCase) Exists(ctx context.Context, userID string) (bool, error) {
	m, err := uc.find(ctx, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// IsActive member is neither banned nor deleted
func (uc *IdentityUseCase) IsActive(ctx context.Context, userID string) (bool, error) {
	m, err := uc.find(ctx, userID)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsActive(), nil
}

// DisplayName resolved display name, empty when the member is unknown
func (uc *IdentityUseCase) DisplayName(ctx context.Context, userID string) (string, error) {
	m, err := uc.find(ctx, userID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", nil
	}
	return m.DisplayName(), nil
}

func (uc *IdentityUseCase) find(ctx context.Context, userID string) (*domain.Member, error) {
	m, err := uc.memberRepo.FindByMember(ctx, &domain.MemberQuery{MemberID: &userID})
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}
