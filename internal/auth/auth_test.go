package auth

import (
	"errors"
	"testing"

	"bantuinchat/internal/models"
)

type memSettings struct {
	values map[string]string
	reads  int
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (m *memSettings) GetSetting(key string) (string, error) {
	m.reads++
	value, ok := m.values[key]
	if !ok {
		return "", models.ErrNotFound
	}
	return value, nil
}

func (m *memSettings) PutSetting(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memSettings) DeleteSetting(key string) error {
	delete(m.values, key)
	return nil
}

func TestTokenStore(t *testing.T) {
	t.Run("NotFoundWhenEmpty", func(t *testing.T) {
		ts := NewTokenStore(newMemSettings())
		if _, err := ts.Token(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		settings := newMemSettings()
		ts := NewTokenStore(settings)

		if err := ts.SetToken("tok-123"); err != nil {
			t.Fatalf("SetToken failed: %v", err)
		}

		token, err := ts.Token()
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if token != "tok-123" {
			t.Errorf("expected tok-123, got %s", token)
		}

		// Second read is served from the cache.
		reads := settings.reads
		if _, err := ts.Token(); err != nil {
			t.Fatal(err)
		}
		if settings.reads != reads {
			t.Error("expected cached read, hit storage instead")
		}
	})

	t.Run("EmptyTokenRejected", func(t *testing.T) {
		ts := NewTokenStore(newMemSettings())
		if err := ts.SetToken(""); err == nil {
			t.Error("expected error for empty token")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		ts := NewTokenStore(newMemSettings())
		if err := ts.SetToken("tok-123"); err != nil {
			t.Fatal(err)
		}
		if err := ts.ClearToken(); err != nil {
			t.Fatalf("ClearToken failed: %v", err)
		}
		if _, err := ts.Token(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound after clear, got %v", err)
		}
	})
}

func TestProfileRoundTrip(t *testing.T) {
	ts := NewTokenStore(newMemSettings())

	if _, err := ts.LoadProfile(); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	user := models.User{ID: "u1", FullName: "Dina", Major: "Informatika"}
	if err := ts.SaveProfile(user); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	loaded, err := ts.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if loaded != user {
		t.Errorf("expected %+v, got %+v", user, loaded)
	}
}
