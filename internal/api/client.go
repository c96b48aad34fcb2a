package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bantuinchat/internal/models"
)

const DefaultTimeout = 30 * time.Second

// TokenSource provides the bearer credential for outgoing requests.
// models.ErrNotFound means the user is not authenticated.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the Bantuin backend REST API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client. Used in tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

type sendRequest struct {
	RecipientID    string `json:"recipientId"`
	InitialMessage string `json:"initialMessage"`
}

// FetchProfile returns the authenticated user's own profile.
func (c *Client) FetchProfile(ctx context.Context) (models.User, error) {
	env, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return models.User{}, err
	}
	if !env.Success {
		return models.User{}, fmt.Errorf("profile fetch rejected: %s", env.Error)
	}

	var user models.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return models.User{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	if user.ID == "" {
		return models.User{}, fmt.Errorf("profile response missing user id")
	}
	return user, nil
}

// FetchConversations returns the authenticated user's conversation list,
// most recently active first.
func (c *Client) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	env, err := c.doRequest(ctx, http.MethodGet, "/chat", nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("conversation fetch rejected: %s", env.Error)
	}

	var conversations []models.Conversation
	if err := json.Unmarshal(env.Data, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

// SendMessage delivers content to recipientID. The backend creates the
// conversation on first contact, so the returned id may be brand new.
func (c *Client) SendMessage(ctx context.Context, recipientID, content string) (string, error) {
	env, err := c.doRequest(ctx, http.MethodPost, "/chat", sendRequest{
		RecipientID:    recipientID,
		InitialMessage: content,
	})
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", fmt.Errorf("send rejected: %s", env.Error)
	}

	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	if data.ID == "" {
		return "", fmt.Errorf("send response missing conversation id")
	}
	return data.ID, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("no credential for %s %s: %w", method, path, err)
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return &env, nil
}
