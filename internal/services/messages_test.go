package services

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/database"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/chat"
)

// setupTestDB initializes an in-memory SQLite DB for testing
func setupTestDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	database.DB = db
	// The shared-cache DB outlives individual tests; start each one clean.
	if err := database.DB.Migrator().DropTable(&models.Message{}, &models.User{}); err != nil {
		t.Fatalf("Failed to reset test DB: %v", err)
	}
	if err := database.DB.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
}

func seedUsers(t *testing.T, ids ...string) {
	for _, id := range ids {
		u := models.User{ID: id, Username: id, Email: id + "@example.com"}
		if err := database.DB.Create(&u).Error; err != nil {
			t.Fatalf("Failed to seed user %s: %v", id, err)
		}
	}
}

func TestSendMessage_Valid(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	msg, err := SendMessage("buyer1", "seller1", "  hello  ", "")
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "hello", msg.Content) // trimmed
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.Equal(t, chat.ConversationKey("buyer1", "seller1"), msg.ConversationID)
	assert.Equal(t, "seller1", msg.Receiver.ID) // display data populated

	// Visible to reads immediately
	var count int64
	database.DB.Model(&models.Message{}).Where("id = ?", msg.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSendMessage_Validation(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	_, err := SendMessage("buyer1", "buyer1", "hi", "")
	assert.ErrorIs(t, err, ErrSelfMessage)

	_, err = SendMessage("buyer1", "", "hi", "")
	assert.ErrorIs(t, err, ErrMissingReceiver)

	_, err = SendMessage("buyer1", "ghost", "hi", "")
	assert.ErrorIs(t, err, ErrReceiverNotFound)

	_, err = SendMessage("buyer1", "seller1", "   ", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = SendMessage("buyer1", "seller1", "hi", "carrier-pigeon")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestSendMessage_ContentLengthBoundary(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	// Exactly the limit is accepted
	msg, err := SendMessage("buyer1", "seller1", strings.Repeat("a", 1000), "")
	assert.NoError(t, err)
	assert.Len(t, msg.Content, 1000)

	// One over is rejected
	_, err = SendMessage("buyer1", "seller1", strings.Repeat("a", 1001), "")
	assert.ErrorIs(t, err, ErrContentTooLong)

	// The limit counts characters, not bytes: 1000 two-byte runes pass
	msg, err = SendMessage("buyer1", "seller1", strings.Repeat("é", 1000), "")
	assert.NoError(t, err)
	assert.Equal(t, 1000, utf8.RuneCountInString(msg.Content))

	_, err = SendMessage("buyer1", "seller1", strings.Repeat("é", 1001), "")
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestSendMessage_RapidSendsDistinctAndOrdered(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	m1, err := SendMessage("buyer1", "seller1", "first", "")
	assert.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	m2, err := SendMessage("buyer1", "seller1", "second", "")
	assert.NoError(t, err)

	assert.NotEqual(t, m1.ID, m2.ID)

	messages, _, err := ConversationMessages("seller1", "buyer1", 1, 20)
	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
}

func TestConversationMessages_Pagination(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		msg := models.Message{
			ID:             fmt.Sprintf("m%02d", i),
			ConversationID: chat.ConversationKey("buyer1", "seller1"),
			SenderID:       "buyer1",
			ReceiverID:     "seller1",
			Content:        "msg",
			Type:           models.MessageTypeText,
			Status:         models.MessageStatusSent,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		database.DB.Create(&msg)
	}

	// Page 1: the 10 newest, oldest-first within the page
	page1, meta, err := ConversationMessages("buyer1", "seller1", 1, 10)
	assert.NoError(t, err)
	assert.Len(t, page1, 10)
	assert.Equal(t, int64(25), meta.Total)
	assert.Equal(t, 3, meta.Pages)
	assert.True(t, page1[0].CreatedAt.Before(page1[9].CreatedAt))

	// Page 2 continues contiguously backward in time
	page2, _, err := ConversationMessages("buyer1", "seller1", 2, 10)
	assert.NoError(t, err)
	assert.Len(t, page2, 10)
	assert.True(t, page2[9].CreatedAt.Before(page1[0].CreatedAt))

	// Page 3 holds the remaining 5 oldest
	page3, _, err := ConversationMessages("buyer1", "seller1", 3, 10)
	assert.NoError(t, err)
	assert.Len(t, page3, 5)
}

func TestMarkRead_IdempotentAndAuthorized(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	msg, _ := SendMessage("buyer1", "seller1", "hello", "")

	// Only the receiver may mark read; the sender gets not-found
	_, err := MarkRead(msg.ID, "buyer1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	read1, err := MarkRead(msg.ID, "seller1")
	assert.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, read1.Status)
	assert.NotNil(t, read1.ReadAt)

	// Second call returns the same terminal state, same readAt
	read2, err := MarkRead(msg.ID, "seller1")
	assert.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, read2.Status)
	assert.Equal(t, read1.ReadAt.Unix(), read2.ReadAt.Unix())
}

func TestMarkDelivered_NeverRegresses(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	msg, _ := SendMessage("buyer1", "seller1", "hello", "")

	delivered, err := MarkDelivered(msg.ID, "seller1")
	assert.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, delivered.Status)

	_, err = MarkRead(msg.ID, "seller1")
	assert.NoError(t, err)

	// Delivered after read must not move the status backward
	again, err := MarkDelivered(msg.ID, "seller1")
	assert.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, again.Status)
}

func TestSoftDelete_SenderOnlyAndHidden(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	msg, _ := SendMessage("buyer1", "seller1", "oops", "")

	// Receiver may not delete
	err := SoftDelete(msg.ID, "seller1")
	assert.ErrorIs(t, err, ErrNotMessageSender)

	err = SoftDelete(msg.ID, "buyer1")
	assert.NoError(t, err)

	// Hidden from reads for both parties
	forSeller, _, _ := ConversationMessages("seller1", "buyer1", 1, 20)
	assert.Empty(t, forSeller)
	forBuyer, _, _ := ConversationMessages("buyer1", "seller1", 1, 20)
	assert.Empty(t, forBuyer)

	// Excluded from unread counts
	count, err := UnreadCount("seller1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Row is retained
	var stored models.Message
	assert.NoError(t, database.DB.First(&stored, "id = ?", msg.ID).Error)
	assert.True(t, stored.IsDeleted)
	assert.NotNil(t, stored.DeletedAt)
}

func TestUnreadCount_Arithmetic(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "buyer1", "seller1")

	count, err := UnreadCount("seller1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Sending increases the receiver's count by exactly 1
	msg, _ := SendMessage("buyer1", "seller1", "hello", "")
	count, _ = UnreadCount("seller1")
	assert.Equal(t, int64(1), count)

	// The sender's own count is untouched
	senderCount, _ := UnreadCount("buyer1")
	assert.Equal(t, int64(0), senderCount)

	// Marking read decreases it by exactly 1
	_, err = MarkRead(msg.ID, "seller1")
	assert.NoError(t, err)
	count, _ = UnreadCount("seller1")
	assert.Equal(t, int64(0), count)
}

func TestListConversations(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "me", "alice", "bob", "carol")

	// Old conversation with alice
	SendMessage("alice", "me", "old hello", "")
	time.Sleep(5 * time.Millisecond)
	// Newer conversation with bob, two unread
	SendMessage("bob", "me", "hey", "")
	time.Sleep(5 * time.Millisecond)
	SendMessage("bob", "me", "you there?", "")
	// carol has no messages with me

	summaries, err := ListConversations("me")
	assert.NoError(t, err)
	assert.Len(t, summaries, 2)

	// Newest last-message first
	assert.Equal(t, "bob", summaries[0].User.ID)
	assert.Equal(t, "you there?", summaries[0].LastMessage.Content)
	assert.Equal(t, int64(2), summaries[0].UnreadCount)

	assert.Equal(t, "alice", summaries[1].User.ID)
	assert.Equal(t, int64(1), summaries[1].UnreadCount)
	assert.Equal(t, chat.ConversationKey("me", "alice"), summaries[1].ConversationID)
}

func TestListConversations_SkipsDeletedLastMessage(t *testing.T) {
	setupTestDB(t)
	seedUsers(t, "me", "alice")

	SendMessage("alice", "me", "keep this", "")
	time.Sleep(5 * time.Millisecond)
	deleted, _ := SendMessage("alice", "me", "delete this", "")
	assert.NoError(t, SoftDelete(deleted.ID, "alice"))

	summaries, err := ListConversations("me")
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "keep this", summaries[0].LastMessage.Content)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
}
