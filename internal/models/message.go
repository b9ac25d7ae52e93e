package models

import "time"

// MessageType is the payload kind. Only text is exercised end-to-end today;
// image/file are reserved for the deliverable/upload subsystem.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// MessageStatus is the delivery lifecycle. Transitions only move forward:
// sent -> delivered -> read.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// MaxMessageContentLength bounds the trimmed content of a single message.
const MaxMessageContentLength = 1000

// Message is a direct message between a buyer and a seller. Rows are immutable
// except for the status/read fields and the soft-delete flag.
type Message struct {
	ID string `gorm:"primaryKey;type:text" json:"id"`

	// Canonical key of the two participants, identical regardless of who
	// initiated. Conversations are derived by grouping on this column; there
	// is no separate conversation row.
	ConversationID string `gorm:"index;type:text;not null" json:"conversationId"`

	SenderID   string `gorm:"index;type:text;not null" json:"senderId"`
	Sender     User   `gorm:"foreignKey:SenderID" json:"sender"`
	ReceiverID string `gorm:"index;type:text;not null" json:"receiverId"`
	Receiver   User   `gorm:"foreignKey:ReceiverID" json:"receiver"`

	Content string      `gorm:"type:text;not null" json:"content"`
	Type    MessageType `gorm:"type:text;default:'text';not null" json:"type"`

	Status      MessageStatus `gorm:"type:text;default:'sent';not null" json:"status"`
	DeliveredAt *time.Time    `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time    `json:"readAt,omitempty"`

	// Soft delete: excluded from every read, row retained.
	IsDeleted bool       `gorm:"default:false;index" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Edit audit. Not exercised by clients yet, part of the contract.
	IsEdited bool       `gorm:"default:false" json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
