package domain

import (
	"time"
)

// MemberView one member with resolved display info
type MemberView struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Role        Role       `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// ConversationView conversation plus the annotations list/detail callers need
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	Members      []MemberView `json:"members"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int64        `json:"unread_count"`
}

// GroupDetailView group info for one caller, permissions derived from its role
type GroupDetailView struct {
	Conversation Conversation     `json:"conversation"`
	Members      []MemberView     `json:"members"`
	Permissions  GroupPermissions `json:"permissions"`
}

// MessageView message plus read annotations for one caller
type MessageView struct {
	Message         Message       `json:"message"`
	SenderName      string        `json:"sender_name"`
	ReplyTo         *Message      `json:"reply_to,omitempty"`
	IsReadByCaller  bool          `json:"is_read_by_caller"`
	ReadByCount     int64         `json:"read_by_count"`
	Readers         []ReadReceipt `json:"readers,omitempty"`
}

// MarkReadResult result of one idempotent mark-read call
type MarkReadResult struct {
	AlreadyRead bool `json:"already_read"`
}

// MarkConversationReadResult bulk mark-read counters
type MarkConversationReadResult struct {
	NewlyMarked int `json:"newly_marked"`
	AlreadyRead int `json:"already_read"`
}

// ListOptions bounded paging for conversation lists
type ListOptions struct {
	Limit           int
	Offset          int
	IncludeArchived bool
	StatusFilter    ConversationStatus // empty = all
}

// MessageListOptions bounded paging for message lists
type MessageListOptions struct {
	Limit  int
	Offset int
	Before *time.Time
	After  *time.Time
}

const (
	// DefaultPageSize used when the caller asks for nothing
	DefaultPageSize = 50
	// MaxPageSize 所有 list 操作的上限
	MaxPageSize = 100
)

// ClampLimit bound a requested page size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
