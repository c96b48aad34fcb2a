package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"bantuinchat/internal/models"

	"github.com/gorilla/websocket"
)

const maxReconnectDelay = 30 * time.Second

type tokenSource interface {
	Token() (string, error)
}

// EventHandler receives server events and connection lifecycle callbacks.
// Callbacks run on the client's read goroutine.
type EventHandler interface {
	HandleConnect()
	HandleNewMessage(msg models.Message)
	HandleHistory(history []models.Message)
}

type Config struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("socket URL is required")
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	return nil
}

// Client maintains the single realtime connection for the authenticated
// user. It reconnects a bounded number of times on transport failure; once
// the attempts are spent it stays disconnected until Run is called again.
type Client struct {
	cfg     Config
	tokens  tokenSource
	handler EventHandler
	dialer  *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewClient(cfg Config, tokens tokenSource, handler EventHandler) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}, nil
}

// Connected reports whether the socket is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RequestHistory asks the server for a full replay of one conversation.
func (c *Client) RequestHistory(conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.WriteJSON(models.ClientEvent{
		Event:          models.ClientEventGetHistory,
		ConversationID: conversationID,
	})
}

// Run connects and serves the socket until ctx is cancelled or the
// reconnection budget is exhausted. Without a stored credential it returns
// immediately: an unauthenticated user gets no live updates.
func (c *Client) Run(ctx context.Context) error {
	token, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			slog.Info("no credential, realtime connection skipped")
			return nil
		}
		return err
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.serveConn(ctx, token)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			slog.Warn("socket connection lost", "error", err)
		}

		attempt++
		if attempt > c.cfg.MaxReconnectAttempts {
			slog.Warn("reconnect attempts exhausted, staying offline",
				"attempts", c.cfg.MaxReconnectAttempts)
			return nil
		}

		delay := c.nextDelay(attempt)
		slog.Info("reconnecting", "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) serveConn(ctx context.Context, token string) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL+"?token="+token, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial rejected (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		_ = conn.Close()
	}()

	// Close the connection when ctx dies so ReadJSON unblocks.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	c.handler.HandleConnect()

	for {
		var event models.ServerEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read failed: %w", err)
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event models.ServerEvent) {
	switch event.Event {
	case models.ServerEventNewMessage:
		if event.Message != nil {
			c.handler.HandleNewMessage(*event.Message)
		}
	case models.ServerEventMessageHistory:
		c.handler.HandleHistory(event.Messages)
	default:
		slog.Debug("ignoring unknown server event", "event", event.Event)
	}
}

// nextDelay backs off exponentially with jitter, capped at maxReconnectDelay.
func (c *Client) nextDelay(attempt int) time.Duration {
	jitter := time.Duration(rand.Float64() * float64(c.cfg.ReconnectDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(c.cfg.ReconnectDelay)*math.Pow(2, float64(attempt-1))+float64(jitter),
		float64(maxReconnectDelay),
	))
	return delay
}
