package domain

import (
	"context"
	"time"
)

// EventName closed set of notifier event names
type EventName string

const (
	// EventRequestReceived a private conversation request reached the other side
	EventRequestReceived EventName = "conversation:request_received"
	// EventMemberLeft a member left a group
	EventMemberLeft EventName = "group:member_left"
	// EventMessageEdited a message content changed
	EventMessageEdited EventName = "message:edited"
	// EventMessageDeleted a message was removed
	EventMessageDeleted EventName = "message:deleted"
)

// Event payload delivered to connected clients, fire-and-forget
type Event struct {
	Name           EventName         `json:"name"`
	ConversationID string            `json:"conversation_id,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
	ActorID        string            `json:"actor_id"`
	Timestamp      time.Time         `json:"timestamp"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// Notifier best-effort push delivery, never awaited for correctness
// usecase 只在 commit 之後呼叫, 失敗僅記 log
type Notifier interface {
	NotifyUser(userID string, event Event)
	NotifyConversation(conversationID string, memberIDs []string, event Event)
}

// IdentityProvider resolve a user id against the member store
type IdentityProvider interface {
	Exists(ctx context.Context, userID string) (bool, error)
	IsActive(ctx context.Context, userID string) (bool, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}
