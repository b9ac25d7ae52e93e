package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Nikhita-Thul8855/freelance-marketplace-sub000/internal/models"
)

// API is the request/response surface. It is always used for the initial
// history fetch and serves as the delivery fallback when the live channel is
// unavailable.
type API interface {
	SendMessage(ctx context.Context, receiverID, content string, msgType models.MessageType) (*models.Message, error)
	ConversationMessages(ctx context.Context, otherUserID string, page, limit int) ([]models.Message, *PageMeta, error)
	MarkRead(ctx context.Context, messageID string) (*models.Message, error)
	UnreadCount(ctx context.Context) (int64, error)
}

// PushTransport is the live channel: room membership, acknowledged sends and
// fire-and-forget signaling. The browser client implements this over
// socket.io; tests script it directly. The reconciliation layer never depends
// on which implementation it gets.
type PushTransport interface {
	Status() ConnStatus
	Events() <-chan Event

	JoinConversation(otherUserID string)
	LeaveConversation(otherUserID string)

	// SendMessage blocks until the server acknowledgment or ctx expiry.
	SendMessage(ctx context.Context, receiverID, content string, msgType models.MessageType) (*models.Message, error)

	Typing(receiverID string)
	StopTyping(receiverID string)
	MarkRead(messageID string)

	Close() error
}

// APIError is a non-2xx response from the HTTP surface.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// HTTPClient implements API over the REST endpoints.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) SendMessage(ctx context.Context, receiverID, content string, msgType models.MessageType) (*models.Message, error) {
	req := map[string]interface{}{
		"receiverId": receiverID,
		"content":    content,
	}
	if msgType != "" {
		req["type"] = msgType
	}

	var resp struct {
		Message models.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// PageMeta mirrors the pagination block of the history endpoint.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func (c *HTTPClient) ConversationMessages(ctx context.Context, otherUserID string, page, limit int) ([]models.Message, *PageMeta, error) {
	path := fmt.Sprintf("/api/messages/conversation/%s?page=%d&limit=%d",
		url.PathEscape(otherUserID), page, limit)

	var resp struct {
		Messages   []models.Message `json:"messages"`
		Pagination PageMeta         `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Messages, &resp.Pagination, nil
}

func (c *HTTPClient) MarkRead(ctx context.Context, messageID string) (*models.Message, error) {
	var resp struct {
		Message models.Message `json:"message"`
	}
	path := "/api/messages/" + url.PathEscape(messageID) + "/read"
	if err := c.do(ctx, http.MethodPut, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (c *HTTPClient) UnreadCount(ctx context.Context) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
