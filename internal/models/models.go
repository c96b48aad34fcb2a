package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
)

// DraftConversationID is the sentinel id of a conversation that exists only
// locally: it is assigned when a chat is opened with a user we have never
// exchanged messages with, and replaced by the backend-issued id on the
// first successful send.
const DraftConversationID = "new"

// TempIDPrefix marks locally generated message ids that are still awaiting
// server confirmation.
const TempIDPrefix = "temp-"

// User represents a chat participant as the backend reports it.
type User struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	ProfilePicture string `json:"profilePicture"`
	Major          string `json:"major,omitempty"`
}

// Participant wraps a user inside a conversation's participant list,
// mirroring the backend's nested shape.
type Participant struct {
	User User `json:"user"`
}

// MessageSummary is the denormalized last-message preview shown in the inbox.
type MessageSummary struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is one thread between the current user and a counterparty.
type Conversation struct {
	ID           string          `json:"id"`
	Participants []Participant   `json:"participants"`
	LastMessage  *MessageSummary `json:"lastMessage,omitempty"`
}

// IsDraft reports whether the conversation has not yet been created on the
// backend.
func (c *Conversation) IsDraft() bool {
	return c.ID == DraftConversationID
}

// Counterparty returns the participant that is not selfID.
func (c *Conversation) Counterparty(selfID string) (User, bool) {
	for _, p := range c.Participants {
		if p.User.ID != selfID {
			return p.User, true
		}
	}
	return User{}, false
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.User.ID == userID {
			return true
		}
	}
	return false
}

// Sender is the denormalized sender info carried on every message.
type Sender struct {
	FullName       string `json:"fullName"`
	ProfilePicture string `json:"profilePicture"`
}

// Message is a single chat message. A message whose id carries TempIDPrefix
// is an optimistic placeholder awaiting reconciliation.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SenderID       string    `json:"senderId"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	Sender         Sender    `json:"sender"`
}

// IsPending reports whether the message is an unconfirmed local placeholder.
func (m *Message) IsPending() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Summary returns the directory preview for the message.
func (m *Message) Summary() *MessageSummary {
	return &MessageSummary{
		Content:   m.Content,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
	}
}

// NewTempID generates a fresh placeholder message id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

type ClientEventType string

const (
	ClientEventGetHistory ClientEventType = "getHistory"
)

type ServerEventType string

const (
	ServerEventNewMessage     ServerEventType = "newMessage"
	ServerEventMessageHistory ServerEventType = "messageHistory"
)

// ClientEvent is a frame sent from the client over the realtime socket.
type ClientEvent struct {
	Event          ClientEventType `json:"event"`
	ConversationID string          `json:"conversationId,omitempty"`
}

// ServerEvent is a frame delivered by the server over the realtime socket.
type ServerEvent struct {
	Event    ServerEventType `json:"event"`
	Message  *Message        `json:"message,omitempty"`
	Messages []Message       `json:"messages,omitempty"`
}
