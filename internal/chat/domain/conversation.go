package domain

import (
	"time"
)

// ConversationKind definition conversation kind
type ConversationKind string

const (
	// ConversationKindPrivate definition conversation 1 on 1
	ConversationKindPrivate ConversationKind = "private" // 1對1
	// ConversationKindGroup definition conversation group
	ConversationKindGroup ConversationKind = "group" // 群組
)

// ConversationStatus 決定聊天請求狀態
type ConversationStatus string

const (
	// ConversationPending waiting for the other side to consent
	ConversationPending ConversationStatus = "pending"
	// ConversationAccepted both sides consented
	ConversationAccepted ConversationStatus = "accepted"
	// ConversationRejected the other side declined, can be reopened
	ConversationRejected ConversationStatus = "rejected"
)

// Valid check status is a known one
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationPending, ConversationAccepted, ConversationRejected:
		return true
	}
	return false
}

// Role definition member role in a conversation
type Role string

const (
	// RoleMember plain member
	RoleMember Role = "member"
	// RoleAdmin can manage members and settings
	RoleAdmin Role = "admin"
	// RoleOwner exactly one per active group
	RoleOwner Role = "owner"
)

// CanManage 群組管理權限 (admin 或 owner)
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Valid check role is a known one
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// Conversation definition a private or group conversation
type Conversation struct {
	ID             string             `gorm:"primaryKey;size:36"`
	Kind           ConversationKind   `gorm:"size:16;not null;index"`
	Status         ConversationStatus `gorm:"size:16;not null"`
	PairKey        *string            `gorm:"size:80;uniqueIndex"` // sorted "a:b", private only

	Name           string             `gorm:"size:255"` // group only
	Description    string             `gorm:"type:text"`
	CreatedBy      string             `gorm:"size:36;not null"`
	LastMessageID  *string            `gorm:"size:36"`
	LastActivityAt time.Time          `gorm:"not null;index"`
	IsActive       bool               `gorm:"not null;default:true"`
	CreatedAt      time.Time

	Memberships []Membership `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Messages    []Message    `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// IsGroup conversation is a group one
func (c *Conversation) IsGroup() bool {
	return c.Kind == ConversationKindGroup
}

// PairKeyFor canonical key for an unordered user pair
// 唯一索引靠它擋住同一對 user 的重複 private 房
func PairKeyFor(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// Membership ties a user to a conversation, soft-leave via LeftAt
// (LeftAt = nil 表示目前還在聊天室內)
type Membership struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"size:36;not null;uniqueIndex:uniq_active_member,where:left_at IS NULL"`
	UserID         string    `gorm:"size:36;not null;uniqueIndex:uniq_active_member,where:left_at IS NULL;index"`
	Role           Role      `gorm:"size:16;not null"`
	JoinedAt       time.Time `gorm:"not null"`
	LeftAt         *time.Time
	InvitedBy         *string `gorm:"size:36"`
	LastReadMessageID *string `gorm:"size:36"` // back-reference only, receipts are the truth
	LastReadAt        *time.Time
	IsMuted           bool `gorm:"not null;default:false"`
	IsArchived        bool `gorm:"not null;default:false"` // 封存只影響自己的列表
	NotifyEnabled     bool `gorm:"not null;default:true"`
}

// IsActive membership has not been soft-left
func (m *Membership) IsActive() bool {
	return m.LeftAt == nil
}

// GroupPermissions derived from the caller's role
type GroupPermissions struct {
	CanAddMembers    bool `json:"can_add_members"`
	CanRemoveMembers bool `json:"can_remove_members"`
	CanUpdateSettings bool `json:"can_update_settings"`
	CanUpdateRoles    bool `json:"can_update_roles"`
}

// PermissionsFor map a role to its group permissions
func PermissionsFor(r Role) GroupPermissions {
	return GroupPermissions{
		CanAddMembers:     r.CanManage(),
		CanRemoveMembers:  r.CanManage(),
		CanUpdateSettings: r.CanManage(),
		CanUpdateRoles:    r == RoleOwner,
	}
}
