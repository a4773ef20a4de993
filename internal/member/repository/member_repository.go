package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chat_core_service/internal/member/domain"
)

// ErrMemberNotFound no member row matched the query
var ErrMemberNotFound = errors.New("no member found with given criteria")

// MemberRepository definition get Member info
type MemberRepository interface {
	FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error) {
	queryStr := "SELECT id, member_id, email, nickname, status FROM member WHERE 1=1"
	params := []interface{}{}
	paramCount := 1

	if memberQuery.Email != nil {
		queryStr += fmt.Sprintf(" AND email = $%d", paramCount)
		params = append(params, *memberQuery.Email)
		paramCount++
	}
	if memberQuery.MemberID != nil {
		queryStr += fmt.Sprintf(" AND member_id = $%d", paramCount)
		params = append(params, *memberQuery.MemberID)
		paramCount++
	}
	if memberQuery.ID != nil {
		queryStr += fmt.Sprintf(" AND id = $%d", paramCount)
		params = append(params, *memberQuery.ID)
		paramCount++
	}

	row := r.db.QueryRow(ctx, queryStr, params...)
	var member domain.Member
	err := row.Scan(&member.ID, &member.MemberID, &member.Email, &member.Nickname, &member.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	return &member, nil
}
