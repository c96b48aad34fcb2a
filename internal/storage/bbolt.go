package storage

import (
	"fmt"
	"sort"
	"time"

	"bantuinchat/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketConversations = []byte("conversations")
	bucketMessages      = []byte("messages")
	bucketSettings      = []byte("settings")
)

// BboltStorage is the durable mirror of the client-side chat cache. The
// backend stays authoritative; this store only bridges the gap between a
// restart and the next server replay.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketConversations); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSettings); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// AppendMessage writes a single message into its conversation's log.
func (s *BboltStorage) AppendMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if message.ConversationID == "" {
			return fmt.Errorf("message %s missing conversation id", message.ID)
		}

		convBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(message.ConversationID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		dbMsg := toDBMessage(message)
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return convBucket.Put(dbMsg.Key(), data)
	})
}

// ReplaceMessages rewrites one conversation's log wholesale. Used after a
// merge so the mirror matches the in-memory cache exactly.
func (s *BboltStorage) ReplaceMessages(conversationID string, messages []models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		mainBucket := tx.Bucket(bucketMessages)
		if mainBucket.Bucket([]byte(conversationID)) != nil {
			if err := mainBucket.DeleteBucket([]byte(conversationID)); err != nil {
				return fmt.Errorf("failed to reset conversation bucket: %w", err)
			}
		}

		convBucket, err := mainBucket.CreateBucket([]byte(conversationID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		for _, message := range messages {
			dbMsg := toDBMessage(message)
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal message %s: %w", message.ID, err)
			}
			if err := convBucket.Put(dbMsg.Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMessage removes a single message, typically a rolled-back optimistic
// placeholder.
func (s *BboltStorage) DeleteMessage(conversationID string, message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if convBucket == nil {
			return nil
		}
		dbMsg := toDBMessage(message)
		return convBucket.Delete(dbMsg.Key())
	})
}

// ListMessages returns one conversation's log in chronological order.
func (s *BboltStorage) ListMessages(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if convBucket == nil {
			return nil
		}
		return convBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, dbMsg.toModel())
			return nil
		})
	})
	return messages, err
}

// LoadAllMessages returns the full cache, keyed by conversation id. Called
// once at startup.
func (s *BboltStorage) LoadAllMessages() (map[string][]models.Message, error) {
	cache := make(map[string][]models.Message)
	err := s.db.View(func(tx *bbolt.Tx) error {
		mainBucket := tx.Bucket(bucketMessages)
		return mainBucket.ForEachBucket(func(name []byte) error {
			convBucket := mainBucket.Bucket(name)
			var messages []models.Message
			err := convBucket.ForEach(func(k, v []byte) error {
				var dbMsg DBMessage
				if err := dbMsg.UnmarshalBinary(v); err != nil {
					return err
				}
				messages = append(messages, dbMsg.toModel())
				return nil
			})
			if err != nil {
				return err
			}
			cache[string(name)] = messages
			return nil
		})
	})
	return cache, err
}

// MigrateConversation re-keys a conversation's log under a new id, rewriting
// each message's conversation id. Used when a local draft is confirmed by the
// backend.
func (s *BboltStorage) MigrateConversation(oldID, newID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		mainBucket := tx.Bucket(bucketMessages)
		oldBucket := mainBucket.Bucket([]byte(oldID))
		if oldBucket == nil {
			return nil
		}

		newBucket, err := mainBucket.CreateBucketIfNotExists([]byte(newID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		err = oldBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return fmt.Errorf("corrupt message under %s: %w", oldID, err)
			}
			dbMsg.ConversationID = newID
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			return newBucket.Put(dbMsg.Key(), data)
		})
		if err != nil {
			return err
		}

		return mainBucket.DeleteBucket([]byte(oldID))
	})
}

// ReplaceConversations overwrites the stored directory snapshot, preserving
// the given order.
func (s *BboltStorage) ReplaceConversations(conversations []models.Conversation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketConversations); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketConversations)
		if err != nil {
			return err
		}
		for i, conv := range conversations {
			dbConv := toDBConversation(conv, i)
			data, err := dbConv.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
			}
			if err := b.Put(dbConv.Key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListConversations returns the stored directory snapshot in its original
// order (most recently active first).
func (s *BboltStorage) ListConversations() ([]models.Conversation, error) {
	var dbConvs []DBConversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		return b.ForEach(func(k, v []byte) error {
			var dbConv DBConversation
			if err := dbConv.UnmarshalBinary(v); err != nil {
				return err
			}
			dbConvs = append(dbConvs, dbConv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(dbConvs, func(i, j int) bool {
		return dbConvs[i].Position < dbConvs[j].Position
	})

	conversations := make([]models.Conversation, 0, len(dbConvs))
	for i := range dbConvs {
		conversations = append(conversations, dbConvs[i].toModel())
	}
	return conversations, nil
}

// GetSetting reads a small key/value setting, such as the bearer token.
func (s *BboltStorage) GetSetting(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(key))
		if data == nil {
			return models.ErrNotFound
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (s *BboltStorage) PutSetting(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), []byte(value))
	})
}

func (s *BboltStorage) DeleteSetting(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(key))
	})
}
