package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bantuinchat/internal/models"
)

func TestStorage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := func(id string, offset int) models.Message {
		return models.Message{
			ID:             id,
			Content:        "message " + id,
			SenderID:       "u1",
			ConversationID: "c1",
			CreatedAt:      base.Add(time.Duration(offset) * time.Second),
			Sender:         models.Sender{FullName: "Dina"},
		}
	}

	t.Run("Messages", func(t *testing.T) {
		if err := store.AppendMessage(msg("m2", 2)); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if err := store.AppendMessage(msg("m1", 1)); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}

		// Keys are time-prefixed, so iteration order is chronological
		// regardless of insertion order.
		msgs, err := store.ListMessages("c1")
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
			t.Errorf("expected chronological order m1, m2; got %s, %s", msgs[0].ID, msgs[1].ID)
		}
		if !msgs[0].CreatedAt.Equal(base.Add(time.Second)) {
			t.Errorf("timestamp did not round-trip: %v", msgs[0].CreatedAt)
		}
		if msgs[0].Sender.FullName != "Dina" {
			t.Errorf("sender did not round-trip: %+v", msgs[0].Sender)
		}
	})

	t.Run("ReplaceMessages", func(t *testing.T) {
		replacement := []models.Message{msg("m3", 3)}
		if err := store.ReplaceMessages("c1", replacement); err != nil {
			t.Fatalf("ReplaceMessages failed: %v", err)
		}
		msgs, err := store.ListMessages("c1")
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(msgs) != 1 || msgs[0].ID != "m3" {
			t.Errorf("expected only m3 after replace, got %+v", msgs)
		}
	})

	t.Run("DeleteMessage", func(t *testing.T) {
		target := msg("m3", 3)
		if err := store.DeleteMessage("c1", target); err != nil {
			t.Fatalf("DeleteMessage failed: %v", err)
		}
		msgs, err := store.ListMessages("c1")
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("expected empty log, got %d messages", len(msgs))
		}
	})

	t.Run("MigrateConversation", func(t *testing.T) {
		draft := msg("temp-1", 4)
		draft.ConversationID = "new"
		if err := store.AppendMessage(draft); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}

		if err := store.MigrateConversation("new", "c9"); err != nil {
			t.Fatalf("MigrateConversation failed: %v", err)
		}

		msgs, err := store.ListMessages("c9")
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("expected 1 migrated message, got %d", len(msgs))
		}
		if msgs[0].ConversationID != "c9" {
			t.Errorf("migrated message keeps old conversation id: %s", msgs[0].ConversationID)
		}

		old, err := store.ListMessages("new")
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(old) != 0 {
			t.Errorf("old bucket should be gone, got %d messages", len(old))
		}
	})

	t.Run("LoadAllMessages", func(t *testing.T) {
		cache, err := store.LoadAllMessages()
		if err != nil {
			t.Fatalf("LoadAllMessages failed: %v", err)
		}
		if len(cache["c9"]) != 1 {
			t.Errorf("expected c9 in the loaded cache, got %v", cache)
		}
	})

	t.Run("Conversations", func(t *testing.T) {
		conversations := []models.Conversation{
			{
				ID: "c2",
				Participants: []models.Participant{
					{User: models.User{ID: "u1", FullName: "Dina"}},
					{User: models.User{ID: "u2", FullName: "Budi"}},
				},
				LastMessage: &models.MessageSummary{
					Content:   "terakhir",
					SenderID:  "u1",
					CreatedAt: base,
				},
			},
			{ID: "c1", Participants: []models.Participant{{User: models.User{ID: "u1"}}}},
		}

		if err := store.ReplaceConversations(conversations); err != nil {
			t.Fatalf("ReplaceConversations failed: %v", err)
		}

		got, err := store.ListConversations()
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(got))
		}
		if got[0].ID != "c2" || got[1].ID != "c1" {
			t.Errorf("order not preserved: %s, %s", got[0].ID, got[1].ID)
		}
		if got[0].LastMessage == nil || got[0].LastMessage.Content != "terakhir" {
			t.Errorf("last message did not round-trip: %+v", got[0].LastMessage)
		}
		if got[0].Participants[1].User.FullName != "Budi" {
			t.Errorf("participants did not round-trip: %+v", got[0].Participants)
		}
	})

	t.Run("Settings", func(t *testing.T) {
		if _, err := store.GetSetting("missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := store.PutSetting("k", "v"); err != nil {
			t.Fatalf("PutSetting failed: %v", err)
		}
		value, err := store.GetSetting("k")
		if err != nil {
			t.Fatalf("GetSetting failed: %v", err)
		}
		if value != "v" {
			t.Errorf("expected v, got %s", value)
		}

		if err := store.DeleteSetting("k"); err != nil {
			t.Fatalf("DeleteSetting failed: %v", err)
		}
		if _, err := store.GetSetting("k"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}
