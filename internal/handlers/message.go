package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/services"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/logger"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/utils"
)

func messageType(s string) models.MessageType {
	if s == "" {
		return models.MessageTypeText
	}
	return models.MessageType(s)
}

// SendMessage POST /messages
// Request/response delivery path. Used by clients whose real-time channel is
// unavailable, and always safe: persistence is identical to the socket path,
// the receiver just discovers the message on the next poll or reconnect.
func SendMessage(c *gin.Context) {
	senderID := c.MustGet("userId").(string)

	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
		Content    string `json:"content" binding:"required"`
		Type       string `json:"type"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiverId and content are required"})
		return
	}

	msg, err := services.SendMessage(senderID, req.ReceiverID, req.Content, messageType(req.Type))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReceiverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrSelfMessage),
			errors.Is(err, services.ErrMissingReceiver),
			errors.Is(err, services.ErrEmptyContent),
			errors.Is(err, services.ErrContentTooLong),
			errors.Is(err, services.ErrInvalidType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error().Err(err).Msg("Failed to send message")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}

	// If the receiver happens to have a live session, push in real time too.
	// Clients de-duplicate by message ID, so the extra push is harmless.
	PushNewMessage(msg, senderID, msg.ReceiverID)

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GetConversationMessages GET /messages/conversation/:userId?page&limit
// Returns one page of the conversation with the given user, oldest-first.
func GetConversationMessages(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	otherUserID := c.Param("userId")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	messages, meta, err := services.ConversationMessages(currentUserID, otherUserID, page, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch conversation messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   messages,
		"pagination": meta,
	})
}

// GetConversations GET /messages/conversations
// Sidebar view: one summary per counterpart, newest last-message first.
func GetConversations(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	conversations, err := services.ListConversations(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// MarkMessageRead PUT /messages/:messageId/read
// 404 covers both "no such message" and "not addressed to you".
func MarkMessageRead(c *gin.Context) {
	readerID := c.MustGet("userId").(string)
	messageID := c.Param("messageId")

	// Message IDs are UUIDs; anything else cannot exist
	if !utils.IsUUID(messageID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	msg, err := services.MarkRead(messageID, readerID)
	if err != nil {
		if errors.Is(err, services.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		logger.Error().Err(err).Msg("Failed to mark message read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark message read"})
		return
	}

	// Read receipt to the sender's live sessions, if any
	if SocketServer != nil {
		SocketServer.BroadcastToRoom("/", msg.SenderID, "message-read", map[string]interface{}{
			"messageId": msg.ID,
			"readAt":    msg.ReadAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage DELETE /messages/:messageId
// Soft delete; only the sender may delete, anyone else sees 404.
func DeleteMessage(c *gin.Context) {
	requesterID := c.MustGet("userId").(string)
	messageID := c.Param("messageId")

	if !utils.IsUUID(messageID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	err := services.SoftDelete(messageID, requesterID)
	if err != nil {
		if errors.Is(err, services.ErrMessageNotFound) || errors.Is(err, services.ErrNotMessageSender) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		logger.Error().Err(err).Msg("Failed to delete message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetUnreadCount GET /messages/unread-count
// Polled by clients without an open conversation; backed by a short Redis cache.
func GetUnreadCount(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	count, err := services.UnreadCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
