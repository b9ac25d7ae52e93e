package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/chat"
)

const (
	defaultPageSize = 20

	// How long a send waits for the live channel's acknowledgment before
	// falling back to HTTP. The fallback happens exactly once; retrying the
	// same channel would risk duplicate sends.
	defaultAckTimeout = 5 * time.Second

	// A typing indicator with no stop-typing event clears itself after this
	// quiet period so it can never stick forever.
	typingExpiry = 2 * time.Second
)

// Conversation is the reconciled client-side view of one conversation: a
// single ordered, duplicate-free message list merged from push events and
// HTTP history, plus the counterpart's typing/presence state.
type Conversation struct {
	api     API
	push    PushTransport // nil for HTTP-only clients
	selfID  string
	otherID string

	mu          sync.Mutex
	messages    []models.Message
	seen        map[string]int // message ID -> index in messages
	page        int
	pages       int
	typing      bool
	typingTimer *time.Timer
	typingGen   uint64 // invalidates expiry callbacks from superseded timers
	otherOnline bool
	status      ConnStatus
	ackTimeout  time.Duration
}

// OpenConversation seeds the view from page 1 of the HTTP history and, when a
// live channel is available, joins the conversation room for push events.
func OpenConversation(ctx context.Context, api API, push PushTransport, selfID, otherID string) (*Conversation, error) {
	c := &Conversation{
		api:        api,
		push:       push,
		selfID:     selfID,
		otherID:    otherID,
		seen:       make(map[string]int),
		status:     StatusDisconnected,
		ackTimeout: defaultAckTimeout,
	}

	history, meta, err := api.ConversationMessages(ctx, otherID, 1, defaultPageSize)
	if err != nil {
		return nil, err
	}
	// History arrives oldest-first already
	for _, m := range history {
		c.insert(m)
	}
	c.page = 1
	if meta != nil {
		c.pages = meta.Pages
	}

	if push != nil {
		c.status = push.Status()
		push.JoinConversation(otherID)
	}

	return c, nil
}

// HandleEvent folds one live-channel event into the view. The type switch is
// exhaustive over the Event union.
func (c *Conversation) HandleEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case NewMessageEvent:
		if e.Message.ConversationID != c.key() {
			return
		}
		c.insert(e.Message)
		// A message from the counterpart supersedes their typing indicator
		if e.Message.SenderID == c.otherID {
			c.clearTypingLocked()
		}

	case MessageSentEvent:
		if e.Message.ConversationID != c.key() {
			return
		}
		c.insert(e.Message)

	case MessageErrorEvent:
		// The send path already surfaced the failure to its caller

	case MessageNotificationEvent:
		// Sidebar concern; the open conversation gets its own NewMessageEvent

	case UserTypingEvent:
		if e.UserID != c.otherID {
			return
		}
		c.typing = true
		if c.typingTimer != nil {
			c.typingTimer.Stop()
		}
		// Stop does not cancel a callback that has already fired and is
		// waiting on c.mu; the generation check makes such stragglers no-ops.
		c.typingGen++
		gen := c.typingGen
		c.typingTimer = time.AfterFunc(typingExpiry, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.typingGen == gen {
				c.typing = false
			}
		})

	case UserStopTypingEvent:
		if e.UserID != c.otherID {
			return
		}
		c.clearTypingLocked()

	case MessageReadEvent:
		if idx, ok := c.seen[e.MessageID]; ok {
			readAt := e.ReadAt
			c.messages[idx].Status = models.MessageStatusRead
			c.messages[idx].ReadAt = &readAt
		}

	case UserOnlineEvent:
		if e.UserID == c.otherID {
			c.otherOnline = true
		}

	case UserOfflineEvent:
		if e.UserID == c.otherID {
			c.otherOnline = false
		}

	case StatusEvent:
		c.status = e.Status
	}
}

// Send delivers one message, preferring the live channel and falling back to
// HTTP transparently when the channel is down or the acknowledgment times
// out. On error the caller keeps the content for a manual retry; nothing is
// retried automatically.
func (c *Conversation) Send(ctx context.Context, content string) (*models.Message, error) {
	if c.pushUsable() {
		ackCtx, cancel := context.WithTimeout(ctx, c.ackTimeout)
		msg, err := c.push.SendMessage(ackCtx, c.otherID, content, models.MessageTypeText)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.insert(*msg)
			c.mu.Unlock()
			return msg, nil
		}
		// Fall through to the HTTP path exactly once
	}

	msg, err := c.api.SendMessage(ctx, c.otherID, content, models.MessageTypeText)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.insert(*msg)
	c.mu.Unlock()
	return msg, nil
}

// LoadOlder fetches the next page of history, contiguously backward in time,
// and merges it in front of the current list.
func (c *Conversation) LoadOlder(ctx context.Context) (bool, error) {
	c.mu.Lock()
	next := c.page + 1
	pages := c.pages
	c.mu.Unlock()

	if pages > 0 && next > pages {
		return false, nil
	}

	history, meta, err := c.api.ConversationMessages(ctx, c.otherID, next, defaultPageSize)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range history {
		c.insert(m)
	}
	c.page = next
	if meta != nil {
		c.pages = meta.Pages
	}
	return len(history) > 0, nil
}

// MarkRead marks a counterpart message read, preferring the live channel so
// the sender gets the receipt immediately.
func (c *Conversation) MarkRead(ctx context.Context, messageID string) error {
	if c.pushUsable() {
		c.push.MarkRead(messageID)
		return nil
	}
	_, err := c.api.MarkRead(ctx, messageID)
	return err
}

// Typing signals to the counterpart that we are composing. Best-effort.
func (c *Conversation) Typing() {
	if c.pushUsable() {
		c.push.Typing(c.otherID)
	}
}

func (c *Conversation) StopTyping() {
	if c.pushUsable() {
		c.push.StopTyping(c.otherID)
	}
}

// Messages returns a copy of the reconciled, chronologically ordered list.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// TypingIndicator reports whether the counterpart is currently typing.
func (c *Conversation) TypingIndicator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// OtherOnline reports the counterpart's last known presence.
func (c *Conversation) OtherOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.otherOnline
}

// Status is the live channel state, for the non-blocking status badge.
func (c *Conversation) Status() ConnStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.push != nil {
		return c.push.Status()
	}
	return c.status
}

// Close leaves the conversation room and stops the typing timer.
func (c *Conversation) Close() {
	c.mu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.mu.Unlock()

	if c.push != nil {
		c.push.LeaveConversation(c.otherID)
	}
}

func (c *Conversation) key() string {
	return chat.ConversationKey(c.selfID, c.otherID)
}

func (c *Conversation) pushUsable() bool {
	return c.push != nil && c.push.Status() == StatusConnected
}

// insert adds a message keeping creation-time order, or updates the existing
// entry when the same ID arrives again (once via push, once via history).
// Callers hold c.mu.
func (c *Conversation) insert(m models.Message) {
	if idx, ok := c.seen[m.ID]; ok {
		// Duplicate delivery: keep the entry, fold in any status advance
		if statusRank(m.Status) > statusRank(c.messages[idx].Status) {
			c.messages[idx].Status = m.Status
			c.messages[idx].DeliveredAt = m.DeliveredAt
			c.messages[idx].ReadAt = m.ReadAt
		}
		return
	}

	// Find the insertion point from the back; pushes almost always append
	pos := len(c.messages)
	for pos > 0 && c.messages[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}

	c.messages = append(c.messages, models.Message{})
	copy(c.messages[pos+1:], c.messages[pos:])
	c.messages[pos] = m

	// Reindex shifted entries
	for i := pos; i < len(c.messages); i++ {
		c.seen[c.messages[i].ID] = i
	}
}

func statusRank(s models.MessageStatus) int {
	switch s {
	case models.MessageStatusDelivered:
		return 1
	case models.MessageStatusRead:
		return 2
	default:
		return 0
	}
}

// Callers hold c.mu.
func (c *Conversation) clearTypingLocked() {
	c.typing = false
	c.typingGen++
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}
