// Package transport implements the HTTP collaborators of a chat
// session: history fetch and message send against the HarmonyChat
// backend API.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/notDroid/HarmonyChat/internal/httpx"
	"github.com/notDroid/HarmonyChat/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client talks to the backend REST API. It implements the session's
// HistoryFetcher and MessageSender contracts.
type Client struct {
	baseURL string
	tokens  *TokenSource // nil means unauthenticated requests
	timeout time.Duration
}

// NewClient creates an API client. baseURL is the scheme://host[:port]
// root, without a trailing slash. tokens may be nil.
func NewClient(baseURL string, tokens *TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		timeout: defaultTimeout,
	}
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// FetchHistory loads one page of chat history, newest messages when the
// cursor is empty, older ones otherwise.
func (c *Client) FetchHistory(ctx context.Context, chatID string, limit int, cursor string) (models.Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/api/v1/chats/%s/history", c.baseURL, url.PathEscape(chatID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp models.ChatHistoryResponse
	if err := c.do(ctx, fiber.Get(endpoint), &resp); err != nil {
		return models.Page{}, err
	}
	return resp.ToPage(), nil
}

// Send posts a new message and returns the confirmed record with its
// server-assigned id.
func (c *Client) Send(ctx context.Context, chatID, content, clientUUID string) (models.Message, error) {
	endpoint := fmt.Sprintf("%s/api/v1/chats/%s/messages", c.baseURL, url.PathEscape(chatID))
	agent := fiber.Post(endpoint).JSON(models.MessageSendRequest{
		Content:    content,
		ClientUUID: clientUUID,
	})

	var msg models.Message
	if err := c.do(ctx, agent, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// do executes an agent request with auth and timeout applied, decoding
// a 2xx body into out and anything else into an APIError.
func (c *Client) do(ctx context.Context, agent *fiber.Agent, out interface{}) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	agent.Timeout(timeout)

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("acquire access token: %w", err)
		}
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return httpx.DecodeError(code, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
