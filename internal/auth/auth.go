package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"bantuinchat/internal/models"

	"github.com/c-pro/geche"
)

// TokenKey is the well-known settings key the bearer credential lives under.
const TokenKey = "access_token"

// ProfileKey is the settings key the cached own-profile snapshot lives under.
const ProfileKey = "profile"

// SettingsStore is the durable backing for credentials, implemented by the
// storage layer.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	PutSetting(key, value string) error
	DeleteSetting(key string) error
}

// TokenStore hands out the current user's bearer credential. Reads go
// through an in-memory cache; writes go through to durable storage so the
// token survives restarts.
type TokenStore struct {
	store SettingsStore
	cache geche.Geche[string, string]
}

func NewTokenStore(store SettingsStore) *TokenStore {
	return &TokenStore{
		store: store,
		cache: geche.NewMapCache[string, string](),
	}
}

// Token returns the stored bearer token, or models.ErrNotFound when the user
// is not authenticated. Callers are expected to skip network activity in the
// not-found case rather than surface an error.
func (ts *TokenStore) Token() (string, error) {
	if token, err := ts.cache.Get(TokenKey); err == nil {
		return token, nil
	}

	token, err := ts.store.GetSetting(TokenKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	ts.cache.Set(TokenKey, token)
	return token, nil
}

func (ts *TokenStore) SetToken(token string) error {
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := ts.store.PutSetting(TokenKey, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	ts.cache.Set(TokenKey, token)
	return nil
}

func (ts *TokenStore) ClearToken() error {
	if err := ts.store.DeleteSetting(TokenKey); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	_ = ts.cache.Del(TokenKey)
	return nil
}

// SaveProfile caches the user's own profile so identity survives offline
// starts.
func (ts *TokenStore) SaveProfile(user models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := ts.store.PutSetting(ProfileKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	return nil
}

// LoadProfile returns the cached own-profile snapshot, or models.ErrNotFound
// when none has been saved yet.
func (ts *TokenStore) LoadProfile() (models.User, error) {
	data, err := ts.store.GetSetting(ProfileKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return models.User{}, fmt.Errorf("corrupt profile snapshot: %w", err)
	}
	return user, nil
}
