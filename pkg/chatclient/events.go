// Package chatclient is the Go client SDK for the messaging subsystem. It
// reconciles messages pushed over the live channel with messages fetched over
// HTTP into one de-duplicated, time-ordered view, and falls back to HTTP
// delivery when the live channel is down.
package chatclient

import (
	"time"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
)

// ConnStatus is the live channel's connection state.
type ConnStatus int

const (
	StatusDisconnected ConnStatus = iota
	StatusConnecting
	StatusConnected
	// StatusError means the handshake was rejected (bad/expired token).
	// Like StatusDisconnected it routes sends to the HTTP fallback.
	StatusError
)

func (s ConnStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "disconnected"
	}
}

// Event is the closed set of events the live channel can emit. Using a type
// switch over these gives compile-time exhaustiveness instead of the
// string-keyed callback table this replaces.
type Event interface{ isEvent() }

// NewMessageEvent carries a message pushed in real time.
type NewMessageEvent struct {
	Message models.Message
}

// MessageSentEvent is the server acknowledgment of our own send.
type MessageSentEvent struct {
	Message models.Message
}

// MessageErrorEvent reports a failed send on the live channel.
type MessageErrorEvent struct {
	Reason string
}

// MessageNotificationEvent signals a new message outside the open conversation.
type MessageNotificationEvent struct {
	From    string
	Message models.Message
}

// UserTypingEvent and UserStopTypingEvent relay the counterpart's typing state.
type UserTypingEvent struct {
	UserID string
}

type UserStopTypingEvent struct {
	UserID string
}

// MessageReadEvent is the read receipt for a message we sent.
type MessageReadEvent struct {
	MessageID string
	ReadAt    time.Time
}

// UserOnlineEvent and UserOfflineEvent relay presence changes.
type UserOnlineEvent struct {
	UserID string
}

type UserOfflineEvent struct {
	UserID string
}

// StatusEvent reports a change of the live channel's own state.
type StatusEvent struct {
	Status ConnStatus
}

func (NewMessageEvent) isEvent()          {}
func (MessageSentEvent) isEvent()         {}
func (MessageErrorEvent) isEvent()        {}
func (MessageNotificationEvent) isEvent() {}
func (UserTypingEvent) isEvent()          {}
func (UserStopTypingEvent) isEvent()      {}
func (MessageReadEvent) isEvent()         {}
func (UserOnlineEvent) isEvent()          {}
func (UserOfflineEvent) isEvent()         {}
func (StatusEvent) isEvent()              {}
