package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticTokens string

func (s staticTokens) Token() (string, error) { return string(s), nil }

func TestFetchConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected auth header: %s", got)
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [
				{
					"id": "c1",
					"participants": [
						{"user": {"id": "u1", "fullName": "Dina"}},
						{"user": {"id": "u2", "fullName": "Budi"}}
					],
					"lastMessage": {"content": "halo", "senderId": "u1", "createdAt": "2026-03-01T10:00:00Z"}
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("tok-123"))
	conversations, err := client.FetchConversations(context.Background())
	if err != nil {
		t.Fatalf("FetchConversations failed: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}
	if conversations[0].ID != "c1" {
		t.Errorf("unexpected conversation id: %s", conversations[0].ID)
	}
	if conversations[0].LastMessage == nil || conversations[0].LastMessage.Content != "halo" {
		t.Errorf("last message not decoded: %+v", conversations[0].LastMessage)
	}
	other, ok := conversations[0].Counterparty("u1")
	if !ok || other.FullName != "Budi" {
		t.Errorf("unexpected counterparty: %+v", other)
	}
}

func TestSendMessage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/chat" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			var req sendRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			if req.RecipientID != "u2" || req.InitialMessage != "halo" {
				t.Errorf("unexpected payload: %+v", req)
			}
			_, _ = w.Write([]byte(`{"success": true, "data": {"id": "c42"}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, staticTokens("tok-123"))
		id, err := client.SendMessage(context.Background(), "u2", "halo")
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if id != "c42" {
			t.Errorf("expected c42, got %s", id)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success": false, "error": "recipient not found"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, staticTokens("tok-123"))
		if _, err := client.SendMessage(context.Background(), "u-ghost", "halo"); err == nil {
			t.Error("expected error for rejected send")
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, staticTokens("tok-123"))
		if _, err := client.SendMessage(context.Background(), "u2", "halo"); err == nil {
			t.Error("expected error for missing conversation id")
		}
	})
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success": true, "data": {"id": "u1", "fullName": "Dina", "major": "Informatika"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, staticTokens("tok-123"))
	user, err := client.FetchProfile(context.Background())
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if user.ID != "u1" || user.FullName != "Dina" {
		t.Errorf("unexpected profile: %+v", user)
	}
}
