package domain

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban ,3=delete
const (
	// MemberStatusOffLine 用來表示使用者離線
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine 用來表示使用者在線
	MemberStatusOnLine
	// MemberStatusBan 用來表示使用者被封鎖
	MemberStatusBan
	// MemberStatusDelete 用來表示使用者已刪除
	MemberStatusDelete
)

// Member 用來表示使用者
type Member struct {
	ID       int64
	MemberID string
	Email    string
	Nickname string
	Status   MemberStatus
}

// IsActive banned/deleted members cannot be talked to
func (m *Member) IsActive() bool {
	return m.Status != MemberStatusBan && m.Status != MemberStatusDelete
}

// DisplayName nickname first, email as the fallback
func (m *Member) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Email
}

// MemberQuery join conditions are used to query members
type MemberQuery struct {
	ID       *int64  `db:"id"`
	MemberID *string `db:"member_id"`
	Email    *string `db:"email"`
}
