package main

import (
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/config"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/database"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/chat"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/utils"
)

// Seeds two demo users and a short conversation between them. Local
// development only.
func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("Running migrations (just in case)...")
	database.DB.AutoMigrate(
		&models.User{},
		&models.Message{},
	)

	password, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	buyer := models.User{
		ID:       uuid.New().String(),
		Name:     "Mia Buyer",
		Username: "mia_buyer",
		Email:    "mia@example.com",
		Password: string(password),
		Role:     models.RoleBuyer,
	}
	seller := models.User{
		ID:       uuid.New().String(),
		Name:     "Sam Seller",
		Username: "sam_seller",
		Email:    "sam@example.com",
		Password: string(password),
		Role:     models.RoleSeller,
	}

	for _, u := range []*models.User{&buyer, &seller} {
		if err := database.DB.Where("email = ?", u.Email).FirstOrCreate(u).Error; err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
	}

	key := chat.ConversationKey(buyer.ID, seller.ID)
	now := time.Now()

	messages := []models.Message{
		{
			ID:             uuid.New().String(),
			ConversationID: key,
			SenderID:       buyer.ID,
			ReceiverID:     seller.ID,
			Content:        "Hi! Is the logo design gig still available?",
			Type:           models.MessageTypeText,
			Status:         models.MessageStatusRead,
			CreatedAt:      now.Add(-30 * time.Minute),
		},
		{
			ID:             uuid.New().String(),
			ConversationID: key,
			SenderID:       seller.ID,
			ReceiverID:     buyer.ID,
			Content:        "Yes it is. What style are you after?",
			Type:           models.MessageTypeText,
			Status:         models.MessageStatusSent,
			CreatedAt:      now.Add(-25 * time.Minute),
		},
	}
	readAt := now.Add(-26 * time.Minute)
	messages[0].ReadAt = &readAt
	messages[0].DeliveredAt = &readAt

	for i := range messages {
		if err := database.DB.Create(&messages[i]).Error; err != nil {
			log.Fatalf("Failed to seed message: %v", err)
		}
	}

	log.Printf("Seeded users %s / %s and %d messages (conversation %s)",
		buyer.Username, seller.Username, len(messages), key)

	// Ready-to-use tokens so a socket client can connect without the auth service
	for _, u := range []*models.User{&buyer, &seller} {
		token, err := utils.GenerateToken(u.ID)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", u.Username, err)
		}
		log.Printf("Token for %s: %s", u.Username, token)
	}
}
