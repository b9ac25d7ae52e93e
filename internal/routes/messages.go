package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/handlers"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/middleware"
)

func RegisterMessageRoutes(r gin.IRouter) {
	messages := r.Group("/messages")
	messages.Use(middleware.AuthMiddleware(), middleware.ChatRateLimit())
	{
		messages.POST("", handlers.SendMessage)
		messages.GET("/conversation/:userId", handlers.GetConversationMessages)
		messages.GET("/conversations", handlers.GetConversations)
		messages.PUT("/:messageId/read", handlers.MarkMessageRead)
		messages.DELETE("/:messageId", handlers.DeleteMessage)
		messages.GET("/unread-count", handlers.GetUnreadCount)
	}
}
