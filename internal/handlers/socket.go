package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/database"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/services"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/chat"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/logger"
	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/pkg/utils"
)

var SocketServer *socketio.Server

// Socket send throttle: max messages per user per window
const (
	sendLimit       = 30
	sendLimitWindow = time.Minute
)

// connectionRegistry maps a user to their live socket sessions. A user may
// have several tabs/devices connected at once; presence flips only when the
// first session appears or the last one goes away.
//
// Single process only: the registry lives in memory, so all socket traffic
// must land on one node. Cross-node fan-out would need a message bus behind
// the same push interface.
type connectionRegistry struct {
	mu       sync.RWMutex
	byUser   map[string]map[string]bool // userID -> set of socket IDs
	bySocket map[string]string          // socket ID -> userID
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{
		byUser:   make(map[string]map[string]bool),
		bySocket: make(map[string]string),
	}
}

// add registers a session and reports whether it is the user's first one.
func (r *connectionRegistry) add(userID, socketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := len(r.byUser[userID]) == 0
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]bool)
	}
	r.byUser[userID][socketID] = true
	r.bySocket[socketID] = userID
	return first
}

// remove drops a session and reports the owning user plus whether it was
// their last connection.
func (r *connectionRegistry) remove(socketID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.bySocket[socketID]
	if !ok {
		return "", false
	}
	delete(r.bySocket, socketID)
	delete(r.byUser[userID], socketID)
	if len(r.byUser[userID]) == 0 {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

func (r *connectionRegistry) isOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *connectionRegistry) onlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}

var registry = newConnectionRegistry()

// Typing throttle: minimum interval between relayed typing events per sender
var (
	lastTypingEmit         = make(map[string]time.Time)
	lastTypingMu           sync.RWMutex
	typingThrottleDuration = 3 * time.Second
)

// GetOnlineUsers returns the IDs of all users with at least one live session
func GetOnlineUsers() []string {
	return registry.onlineUsers()
}

// IsUserOnline checks if a user has a live session
func IsUserOnline(userID string) bool {
	return registry.isOnline(userID)
}

// PushNewMessage fans a persisted message out to every live session of its
// receiver, and to everyone in the conversation room so the sender's other
// tabs stay in sync. Used by both the socket send path and the HTTP fallback
// path. Clients de-duplicate by message ID, so sessions in both rooms seeing
// the event twice is harmless. When nobody is listening persistence already
// happened and the unread count is the discovery fallback.
func PushNewMessage(msg interface{}, senderID, receiverID string) {
	if SocketServer == nil {
		return
	}
	payload := map[string]interface{}{
		"message": msg,
	}
	SocketServer.BroadcastToRoom("/", chat.ConversationKey(senderID, receiverID), "new-message", payload)
	if !IsUserOnline(receiverID) {
		return
	}
	SocketServer.BroadcastToRoom("/", receiverID, "new-message", payload)
	SocketServer.BroadcastToRoom("/", receiverID, "message-notification", map[string]interface{}{
		"from":    senderID,
		"message": msg,
	})
}

func InitSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		url := s.URL()

		// Token comes in the handshake query (most reliable for ws upgrade)
		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token") // Fallback
		}

		if token == "" {
			logger.Warn().Str("socket", s.ID()).Msg("Socket connection rejected: no token provided")
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			logger.Warn().Str("socket", s.ID()).Msg("Socket connection rejected: invalid token")
			return fmt.Errorf("invalid token")
		}

		userID := claims.UserID
		logger.Debug().Str("socket", s.ID()).Str("user", userID).Msg("Socket authenticated")

		// Store userID in the socket context for O(1) lookup on later events
		s.SetContext(userID)

		first := registry.add(userID, s.ID())

		// Personal room: every session of this user, used for push fan-out
		s.Join(userID)

		// Global presence room
		s.Join("presence")

		if first {
			server.BroadcastToRoom("/", "presence", "user-online", map[string]interface{}{
				"userId": userID,
			})
		}

		// Snapshot of who is online, for the connecting session
		s.Emit("online_users", GetOnlineUsers())

		return nil
	})

	server.OnEvent("/", "join-conversation", func(s socketio.Conn, otherUserID string) {
		userID, _ := s.Context().(string)
		if userID == "" || otherUserID == "" {
			return
		}
		room := chat.ConversationKey(userID, otherUserID)
		s.Join(room)
	})

	server.OnEvent("/", "leave-conversation", func(s socketio.Conn, otherUserID string) {
		userID, _ := s.Context().(string)
		if userID == "" || otherUserID == "" {
			return
		}
		s.Leave(chat.ConversationKey(userID, otherUserID))
	})

	server.OnEvent("/", "send-message", func(s socketio.Conn, data map[string]interface{}) {
		senderID, _ := s.Context().(string)
		if senderID == "" {
			s.Emit("message-error", map[string]interface{}{"reason": "not authenticated"})
			return
		}

		receiverID, _ := data["receiverId"].(string)
		content, _ := data["content"].(string)
		msgType, _ := data["type"].(string)

		// Per-user spam throttle; skipped when Redis is unavailable
		if database.Redis != nil {
			ok, err := database.CheckRateLimit("chat:"+senderID, sendLimit, sendLimitWindow)
			if err == nil && !ok {
				s.Emit("message-error", map[string]interface{}{"reason": "rate limit exceeded"})
				return
			}
		}

		// Persistence always comes first; the push below is best-effort
		msg, err := services.SendMessage(senderID, receiverID, content, messageType(msgType))
		if err != nil {
			s.Emit("message-error", map[string]interface{}{"reason": err.Error()})
			return
		}

		// Ack to the sending session
		s.Emit("message-sent", map[string]interface{}{"message": msg})

		// Fan out to every live session of the receiver
		PushNewMessage(msg, senderID, receiverID)
	})

	server.OnEvent("/", "typing", func(s socketio.Conn, data map[string]interface{}) {
		senderID, _ := s.Context().(string)
		receiverID, _ := data["receiverId"].(string)
		if senderID == "" || receiverID == "" {
			return
		}

		// THROTTLE: drop repeats inside the window
		lastTypingMu.RLock()
		lastTime, exists := lastTypingEmit[senderID]
		lastTypingMu.RUnlock()

		if exists && time.Since(lastTime) < typingThrottleDuration {
			return
		}

		lastTypingMu.Lock()
		lastTypingEmit[senderID] = time.Now()
		lastTypingMu.Unlock()

		// Scoped to the conversation room; lost silently if nobody joined it
		room := chat.ConversationKey(senderID, receiverID)
		server.BroadcastToRoom("/", room, "user-typing", map[string]interface{}{
			"userId": senderID,
		})
	})

	server.OnEvent("/", "stop-typing", func(s socketio.Conn, data map[string]interface{}) {
		senderID, _ := s.Context().(string)
		receiverID, _ := data["receiverId"].(string)
		if senderID == "" || receiverID == "" {
			return
		}

		room := chat.ConversationKey(senderID, receiverID)
		server.BroadcastToRoom("/", room, "user-stop-typing", map[string]interface{}{
			"userId": senderID,
		})
	})

	server.OnEvent("/", "mark-message-read", func(s socketio.Conn, data map[string]interface{}) {
		readerID, _ := s.Context().(string)
		messageID, _ := data["messageId"].(string)
		if readerID == "" || messageID == "" {
			return
		}

		msg, err := services.MarkRead(messageID, readerID)
		if err != nil {
			// Best-effort signaling; the HTTP read path is the durable one
			logger.Debug().Err(err).Str("message", messageID).Msg("Socket mark-read failed")
			return
		}

		// Read receipt to the original sender's live sessions, if any
		server.BroadcastToRoom("/", msg.SenderID, "message-read", map[string]interface{}{
			"messageId": msg.ID,
			"readAt":    msg.ReadAt,
		})
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		userID, last := registry.remove(s.ID())
		logger.Debug().Str("socket", s.ID()).Str("user", userID).Str("reason", reason).Msg("Socket closed")

		// Offline only when the last session is gone
		if userID != "" && last {
			server.BroadcastToRoom("/", "presence", "user-offline", map[string]interface{}{
				"userId": userID,
			})
		}
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Warn().Err(e).Msg("Socket error")
	})

	go server.Serve()
	SocketServer = server
	return server
}

// Gin handler to wrap the socket.io server
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
