package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/database"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/chat"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/logger"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/utils"
)

// Message store errors. Handlers map these onto HTTP codes; the socket layer
// maps them onto message-error events.
var (
	ErrMissingReceiver  = errors.New("receiver is required")
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrEmptyContent     = errors.New("message content is required")
	ErrContentTooLong   = fmt.Errorf("message content exceeds %d characters", models.MaxMessageContentLength)
	ErrInvalidType      = errors.New("invalid message type")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageSender = errors.New("only the sender may delete a message")
)

const unreadCacheTTL = 30 * time.Second

// ConversationSummary is the derived sidebar entry for one counterpart.
// Conversations have no row of their own; everything here is computed from
// the message log at call time.
type ConversationSummary struct {
	ConversationID string         `json:"conversationId"`
	User           models.User    `json:"user"`
	LastMessage    models.Message `json:"lastMessage"`
	UnreadCount    int64          `json:"unreadCount"`
}

// Pagination is the metadata returned alongside a page of messages.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// SendMessage validates and persists one message. The message is visible to
// reads as soon as this returns; real-time push happens after, never instead.
func SendMessage(senderID, receiverID, content string, msgType models.MessageType) (*models.Message, error) {
	if receiverID == "" {
		return nil, ErrMissingReceiver
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > models.MaxMessageContentLength {
		return nil, ErrContentTooLong
	}

	if msgType == "" {
		msgType = models.MessageTypeText
	}
	switch msgType {
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeFile:
	default:
		return nil, ErrInvalidType
	}

	var receiver models.User
	if err := database.DB.Select("id").First(&receiver, "id = ?", receiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}

	msg := models.Message{
		ID:             utils.GenerateID(),
		ConversationID: chat.ConversationKey(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           msgType,
		Status:         models.MessageStatusSent,
		CreatedAt:      time.Now(),
	}

	if err := database.DB.Create(&msg).Error; err != nil {
		return nil, err
	}

	// Populate cached display data for the response / push payload
	if err := database.DB.Preload("Sender").Preload("Receiver").First(&msg, "id = ?", msg.ID).Error; err != nil {
		logger.Warn().Err(err).Str("messageId", msg.ID).Msg("Failed to load message relations")
	}

	invalidateUnreadCache(receiverID)

	return &msg, nil
}

// ConversationMessages returns one page of the conversation between two users,
// oldest-first for chronological rendering. Pagination walks backward in time:
// page 1 is the newest `limit` messages, page N continues contiguously into
// older history. Soft-deleted messages are excluded.
func ConversationMessages(userID, otherID string, page, limit int) ([]models.Message, *Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	key := chat.ConversationKey(userID, otherID)

	var total int64
	if err := database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND is_deleted = ?", key, false).
		Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var messages []models.Message
	err := database.DB.
		Where("conversation_id = ? AND is_deleted = ?", key, false).
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Sender").Preload("Receiver").
		Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	// Fetched newest-first for the offset math; reverse for display order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	meta := &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}

	return messages, meta, nil
}

// ListConversations returns one summary per counterpart the user has messaged
// with, newest last-message first.
func ListConversations(userID string) ([]ConversationSummary, error) {
	query := `
		WITH partner_latest AS (
			SELECT
				CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id,
				conversation_id,
				MAX(created_at) AS last_msg_at
			FROM messages
			WHERE (sender_id = ? OR receiver_id = ?) AND is_deleted = ?
			GROUP BY 1, 2
		)
		SELECT
			u.id, COALESCE(u.name, ''), COALESCE(u.username, ''), COALESCE(u.avatar, ''), COALESCE(u.role, ''),
			pl.conversation_id,
			m.id, m.sender_id, m.receiver_id, COALESCE(m.content, ''), m.type, m.status, m.created_at,
			(SELECT COUNT(*) FROM messages
				WHERE receiver_id = ? AND sender_id = u.id AND status <> ? AND is_deleted = ?) AS unread_count
		FROM partner_latest pl
		JOIN users u ON u.id = pl.partner_id
		JOIN messages m ON m.conversation_id = pl.conversation_id
			AND m.created_at = pl.last_msg_at AND m.is_deleted = ?
		ORDER BY pl.last_msg_at DESC
	`

	rows, err := database.DB.Raw(query,
		userID, userID, userID, false,
		userID, models.MessageStatusRead, false,
		false,
	).Rows()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch conversations")
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var m models.Message

		err := rows.Scan(
			&s.User.ID, &s.User.Name, &s.User.Username, &s.User.Avatar, &s.User.Role,
			&s.ConversationID,
			&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Type, &m.Status, &m.CreatedAt,
			&s.UnreadCount,
		)
		if err != nil {
			logger.Error().Err(err).Msg("Scan error in ListConversations")
			continue
		}

		m.ConversationID = s.ConversationID
		s.LastMessage = m
		summaries = append(summaries, s)
	}

	return summaries, nil
}

// MarkRead marks a message read by its addressee. Only the receiver may mark a
// message; anyone else gets a not-found so message existence is not leaked.
// Idempotent: a second call returns the same terminal state.
func MarkRead(messageID, readerID string) (*models.Message, error) {
	var msg models.Message
	err := database.DB.First(&msg, "id = ? AND receiver_id = ? AND is_deleted = ?", messageID, readerID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if msg.Status == models.MessageStatusRead {
		return &msg, nil
	}

	now := time.Now()
	msg.Status = models.MessageStatusRead
	msg.ReadAt = &now
	if msg.DeliveredAt == nil {
		msg.DeliveredAt = &now
	}
	if err := database.DB.Save(&msg).Error; err != nil {
		return nil, err
	}

	invalidateUnreadCache(readerID)

	return &msg, nil
}

// MarkDelivered advances a message from sent to delivered. A message that is
// already delivered or read is left alone; status never moves backward.
func MarkDelivered(messageID, receiverID string) (*models.Message, error) {
	var msg models.Message
	err := database.DB.First(&msg, "id = ? AND receiver_id = ? AND is_deleted = ?", messageID, receiverID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if msg.Status != models.MessageStatusSent {
		return &msg, nil
	}

	now := time.Now()
	msg.Status = models.MessageStatusDelivered
	msg.DeliveredAt = &now
	if err := database.DB.Save(&msg).Error; err != nil {
		return nil, err
	}

	return &msg, nil
}

// SoftDelete hides a message from all reads without removing the row. Only the
// original sender may delete.
func SoftDelete(messageID, requesterID string) error {
	var msg models.Message
	err := database.DB.First(&msg, "id = ? AND is_deleted = ?", messageID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if msg.SenderID != requesterID {
		return ErrNotMessageSender
	}

	now := time.Now()
	msg.IsDeleted = true
	msg.DeletedAt = &now
	if err := database.DB.Save(&msg).Error; err != nil {
		return err
	}

	invalidateUnreadCache(msg.ReceiverID)

	return nil
}

// UnreadCount counts non-deleted messages addressed to the user that have not
// been read, across all conversations. Cached briefly in Redis since clients
// poll this while idle.
func UnreadCount(userID string) (int64, error) {
	cacheKey := unreadCacheKey(userID)
	if database.Redis != nil {
		var cached int64
		if err := database.CacheGet(cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var count int64
	err := database.DB.Model(&models.Message{}).
		Where("receiver_id = ? AND status <> ? AND is_deleted = ?", userID, models.MessageStatusRead, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if database.Redis != nil {
		if err := database.CacheSet(cacheKey, count, unreadCacheTTL); err != nil {
			logger.Debug().Err(err).Msg("Failed to cache unread count")
		}
	}

	return count, nil
}

func unreadCacheKey(userID string) string {
	return fmt.Sprintf("unread_count:%s", userID)
}

func invalidateUnreadCache(userID string) {
	if database.Redis == nil {
		return
	}
	if err := database.CacheDelete(unreadCacheKey(userID)); err != nil {
		logger.Debug().Err(err).Msg("Failed to invalidate unread count cache")
	}
}
