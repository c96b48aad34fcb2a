package storage

import (
	"encoding"
	"encoding/binary"
	"time"

	"bantuinchat/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBConversation struct {
	ID           string     `msgpack:"id"`
	Position     int        `msgpack:"position"`
	Participants []DBUser   `msgpack:"participants"`
	LastMessage  *DBSummary `msgpack:"lastMessage"`
}

type DBUser struct {
	ID             string `msgpack:"id"`
	FullName       string `msgpack:"fullName"`
	ProfilePicture string `msgpack:"profilePicture"`
	Major          string `msgpack:"major"`
}

type DBSummary struct {
	Content   string `msgpack:"content"`
	SenderID  string `msgpack:"senderId"`
	CreatedAt int64  `msgpack:"createdAt"` // Unix millis
}

func (c *DBConversation) Key() []byte {
	return []byte(c.ID)
}

func (c *DBConversation) MarshalBinary() (data []byte, err error) {
	type alias DBConversation
	return msgpack.Marshal((*alias)(c))
}

func (c *DBConversation) UnmarshalBinary(data []byte) error {
	type alias DBConversation
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBMessage struct {
	ID             string `msgpack:"id"`
	Content        string `msgpack:"content"`
	SenderID       string `msgpack:"senderId"`
	ConversationID string `msgpack:"conversationId"`
	CreatedAt      int64  `msgpack:"createdAt"` // Unix millis
	SenderName     string `msgpack:"senderName"`
	SenderAvatar   string `msgpack:"senderAvatar"`
}

// Key prefixes the message id with its big-endian timestamp so a bucket
// cursor yields messages in chronological order.
func (m *DBMessage) Key() []byte {
	key := make([]byte, 8, 8+len(m.ID))
	binary.BigEndian.PutUint64(key, uint64(m.CreatedAt))
	return append(key, []byte(m.ID)...)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func toDBMessage(m models.Message) DBMessage {
	return DBMessage{
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt.UnixMilli(),
		SenderName:     m.Sender.FullName,
		SenderAvatar:   m.Sender.ProfilePicture,
	}
}

func (m *DBMessage) toModel() models.Message {
	return models.Message{
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		ConversationID: m.ConversationID,
		CreatedAt:      time.UnixMilli(m.CreatedAt).UTC(),
		Sender: models.Sender{
			FullName:       m.SenderName,
			ProfilePicture: m.SenderAvatar,
		},
	}
}

func toDBConversation(c models.Conversation, position int) DBConversation {
	dbConv := DBConversation{
		ID:       c.ID,
		Position: position,
	}
	for _, p := range c.Participants {
		dbConv.Participants = append(dbConv.Participants, DBUser{
			ID:             p.User.ID,
			FullName:       p.User.FullName,
			ProfilePicture: p.User.ProfilePicture,
			Major:          p.User.Major,
		})
	}
	if c.LastMessage != nil {
		dbConv.LastMessage = &DBSummary{
			Content:   c.LastMessage.Content,
			SenderID:  c.LastMessage.SenderID,
			CreatedAt: c.LastMessage.CreatedAt.UnixMilli(),
		}
	}
	return dbConv
}

func (c *DBConversation) toModel() models.Conversation {
	conv := models.Conversation{ID: c.ID}
	for _, p := range c.Participants {
		conv.Participants = append(conv.Participants, models.Participant{
			User: models.User{
				ID:             p.ID,
				FullName:       p.FullName,
				ProfilePicture: p.ProfilePicture,
				Major:          p.Major,
			},
		})
	}
	if c.LastMessage != nil {
		conv.LastMessage = &models.MessageSummary{
			Content:   c.LastMessage.Content,
			SenderID:  c.LastMessage.SenderID,
			CreatedAt: time.UnixMilli(c.LastMessage.CreatedAt).UTC(),
		}
	}
	return conv
}
