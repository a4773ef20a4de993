package domain

import (
	"time"
)

// EditWindow 訊息可編輯時間上限
const EditWindow = 24 * time.Hour

// MessageType definition message content type
type MessageType string

const (
	// MessageTypeText plain text message
	MessageTypeText MessageType = "text"
	// MessageTypeImage image message
	MessageTypeImage MessageType = "image"
	// MessageTypeFile file message
	MessageTypeFile MessageType = "file"
	// MessageTypeSystem system generated message
	MessageTypeSystem MessageType = "system"
)

// Valid check type is a known one
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// MessageStatus definition message delivery status
type MessageStatus string

const (
	// MessageStatusSent stored on the server
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered pushed to at least one device
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead read by every other member
	MessageStatusRead MessageStatus = "read"
)

// Message definition one chat message
// content/edited 欄位以外不可變
type Message struct {
	ID             string        `gorm:"primaryKey;size:36"`
	ConversationID string        `gorm:"size:36;not null;index"`
	SenderID       string        `gorm:"size:36;not null;index"`
	Content        string        `gorm:"type:text;not null"`
	Type           MessageType   `gorm:"size:16;not null"`
	Status         MessageStatus `gorm:"size:16;not null"`
	IsEdited       bool          `gorm:"not null;default:false"`
	EditedAt       *time.Time
	ReplyToID      *string   `gorm:"size:36"` // must point into the same conversation
	Metadata       string    `gorm:"type:jsonb;default:'{}'"`
	CreatedAt      time.Time `gorm:"not null;index"`

	Receipts []ReadReceipt `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// Editable message is still inside the edit window at t
func (m *Message) Editable(t time.Time) bool {
	return t.Sub(m.CreatedAt) <= EditWindow
}

// ReadReceipt one user read one message, written once, never updated
// (作者本人不會有自己訊息的 receipt)
type ReadReceipt struct {
	MessageID string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"primaryKey;size:36;index"`
	ReadAt    time.Time `gorm:"not null"`
}
