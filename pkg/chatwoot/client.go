package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client sends outgoing messages through the platform API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a platform client. Panics on an empty base URL; an empty
// token is allowed for test setups.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		panic("chatwoot.NewClient: base URL must not be empty")
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type outgoingMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
}

// SendMessage posts an outgoing, public reply into a conversation.
func (c *Client) SendMessage(ctx context.Context, accountID int, conversationID int64, content string) error {
	payload, err := json.Marshal(outgoingMessage{
		Content:     content,
		MessageType: "outgoing",
		Private:     false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/accounts/%d/conversations/%d/messages", c.baseURL, accountID, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform rejected message: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// DownloadAttachment fetches an attachment body, capped at 20 MiB.
func (c *Client) DownloadAttachment(ctx context.Context, dataURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment request: %w", err)
	}
	req.Header.Set("api_access_token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}
