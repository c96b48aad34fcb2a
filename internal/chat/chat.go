package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bantuinchat/internal/content"
	"bantuinchat/internal/models"
)

// Backend is the REST surface the service depends on.
type Backend interface {
	FetchConversations(ctx context.Context) ([]models.Conversation, error)
	SendMessage(ctx context.Context, recipientID, content string) (string, error)
}

// Socket is the realtime surface the service depends on. A nil Socket is
// treated as permanently disconnected.
type Socket interface {
	Connected() bool
	RequestHistory(conversationID string) error
}

// CacheStore mirrors the in-memory cache to durable local storage.
type CacheStore interface {
	AppendMessage(message models.Message) error
	ReplaceMessages(conversationID string, messages []models.Message) error
	DeleteMessage(conversationID string, message models.Message) error
	LoadAllMessages() (map[string][]models.Message, error)
	MigrateConversation(oldID, newID string) error
	ReplaceConversations(conversations []models.Conversation) error
	ListConversations() ([]models.Conversation, error)
}

type Config struct {
	Self  models.User
	API   Backend
	Store CacheStore

	// MessageCallback, when set, fires for every live message folded into
	// the cache. It runs on the socket's read goroutine.
	MessageCallback func(msg models.Message)
}

// Service owns the client-side chat state: the conversation directory, the
// per-conversation message cache, and the active conversation. It is
// constructed once at startup and passed by reference to consumers; the
// backend stays authoritative and the merge rules below are idempotent, so
// interleaved socket callbacks and caller requests converge to the same
// state regardless of arrival order.
type Service struct {
	self            models.User
	api             Backend
	store           CacheStore
	socket          Socket
	messageCallback func(msg models.Message)

	mu            sync.RWMutex
	conversations []models.Conversation
	cache         map[string][]models.Message
	active        *models.Conversation
	inboxOpen     bool
}

func New(cfg Config) *Service {
	return &Service{
		self:            cfg.Self,
		api:             cfg.API,
		store:           cfg.Store,
		messageCallback: cfg.MessageCallback,
		cache:           make(map[string][]models.Message),
	}
}

// SetSocket attaches the realtime client. Separate from New because the
// socket's event handler is the service itself.
func (s *Service) SetSocket(socket Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socket = socket
}

// LoadCache restores the message cache and directory snapshot from local
// storage. Called once at startup, before any network activity.
func (s *Service) LoadCache() error {
	cache, err := s.store.LoadAllMessages()
	if err != nil {
		return fmt.Errorf("failed to load message cache: %w", err)
	}
	conversations, err := s.store.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
	if s.cache == nil {
		s.cache = make(map[string][]models.Message)
	}
	s.conversations = conversations
	return nil
}

// Refresh replaces the directory wholesale with the backend's list and
// returns it, so callers looking for a just-created conversation can inspect
// the result directly. On failure the directory keeps its last known state.
func (s *Service) Refresh(ctx context.Context) ([]models.Conversation, error) {
	conversations, err := s.api.FetchConversations(ctx)
	if err != nil {
		slog.Error("conversation refresh failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()

	if err := s.store.ReplaceConversations(conversations); err != nil {
		slog.Error("failed to persist conversations", "error", err)
	}
	return conversations, nil
}

// Conversations returns the current directory, most recently active first.
func (s *Service) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// FindByCounterparty returns the conversation shared with userID, if any.
func (s *Service) FindByCounterparty(userID string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByCounterparty(s.conversations, userID)
}

// Messages returns the cached log for a conversation, oldest first.
func (s *Service) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.cache[conversationID]))
	copy(out, s.cache[conversationID])
	return out
}

// Active returns the currently open conversation.
func (s *Service) Active() (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return models.Conversation{}, false
	}
	return *s.active, true
}

// ActiveMessages returns the cached log for the active conversation.
func (s *Service) ActiveMessages() []models.Message {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active == nil {
		return nil
	}
	return s.Messages(active.ID)
}

// InboxOpen reports whether the inbox list view is showing.
func (s *Service) InboxOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inboxOpen
}

// OpenInbox shows the inbox and refreshes the directory.
func (s *Service) OpenInbox(ctx context.Context) error {
	s.mu.Lock()
	s.inboxOpen = true
	s.mu.Unlock()
	_, err := s.Refresh(ctx)
	return err
}

// ToggleInbox flips the inbox view, refreshing the directory when opening.
func (s *Service) ToggleInbox(ctx context.Context) error {
	s.mu.Lock()
	opening := !s.inboxOpen
	s.inboxOpen = opening
	s.mu.Unlock()

	if !opening {
		return nil
	}
	_, err := s.Refresh(ctx)
	return err
}

// OpenChatWith makes the conversation with recipient active, creating a
// local draft when no conversation exists yet. The draft stays local until
// the first send creates it on the backend.
func (s *Service) OpenChatWith(ctx context.Context, recipient models.User) error {
	s.mu.Lock()
	s.inboxOpen = false
	existing, found := findByCounterparty(s.conversations, recipient.ID)
	s.mu.Unlock()

	if !found {
		// Our copy of the directory may be stale; ask the backend once
		// before declaring the conversation new.
		fresh, err := s.Refresh(ctx)
		if err == nil {
			existing, found = findByCounterparty(fresh, recipient.ID)
		}
	}

	if found {
		s.mu.Lock()
		conv := existing
		s.active = &conv
		socket := s.socket
		s.mu.Unlock()

		if socket != nil && socket.Connected() {
			if err := socket.RequestHistory(existing.ID); err != nil {
				slog.Warn("history request failed", "conversation", existing.ID, "error", err)
			}
		}
		return nil
	}

	draft := models.Conversation{
		ID: models.DraftConversationID,
		Participants: []models.Participant{
			{User: recipient},
			{User: s.self},
		},
	}

	s.mu.Lock()
	if _, ok := s.cache[models.DraftConversationID]; !ok {
		s.cache[models.DraftConversationID] = []models.Message{}
	}
	s.active = &draft
	s.mu.Unlock()
	return nil
}

// Close clears the active conversation. Cached messages are kept.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// Send delivers content to the active conversation's counterparty. The
// message shows up locally at once; a failed request rolls the placeholder
// back. Concurrent sends race independently, each with its own placeholder.
func (s *Service) Send(ctx context.Context, text string) error {
	if content.ValidateMessage(text) != nil {
		return nil
	}
	// Sanitized before the placeholder is built, so the local copy matches
	// what the backend will echo and reconciliation keys stay equal.
	text = content.Sanitize(text)

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	active := *s.active
	s.mu.Unlock()

	recipient, ok := active.Counterparty(s.self.ID)
	if !ok {
		return fmt.Errorf("conversation %s has no counterparty", active.ID)
	}

	optimistic := models.Message{
		ID:             models.NewTempID(),
		Content:        text,
		SenderID:       s.self.ID,
		ConversationID: active.ID,
		CreatedAt:      time.Now().UTC(),
		Sender: models.Sender{
			FullName:       s.self.FullName,
			ProfilePicture: s.self.ProfilePicture,
		},
	}

	s.mu.Lock()
	s.cache[active.ID] = append(s.cache[active.ID], optimistic)
	s.mu.Unlock()
	if err := s.store.AppendMessage(optimistic); err != nil {
		slog.Error("failed to persist optimistic message", "error", err)
	}

	realID, err := s.api.SendMessage(ctx, recipient.ID, text)
	if err != nil {
		s.rollback(active.ID, optimistic)
		slog.Error("send failed", "conversation", active.ID, "error", err)
		return err
	}

	if active.IsDraft() {
		if err := s.confirmDraft(ctx, realID); err != nil {
			slog.Error("draft migration failed", "conversation", realID, "error", err)
		}
	}

	s.mu.RLock()
	socket := s.socket
	s.mu.RUnlock()
	if socket != nil && socket.Connected() {
		if err := socket.RequestHistory(realID); err != nil {
			slog.Warn("history request failed", "conversation", realID, "error", err)
		}
	}
	return nil
}

// confirmDraft migrates the local draft to the backend-issued conversation
// id: the directory is refreshed to pick up the new conversation, every
// cached message is re-keyed, and the active conversation adopts the real
// id. Runs exactly once per draft, on its first successful send.
func (s *Service) confirmDraft(ctx context.Context, realID string) error {
	fresh, err := s.Refresh(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draftMsgs := s.cache[models.DraftConversationID]
	migrated := make([]models.Message, 0, len(draftMsgs))
	for _, m := range draftMsgs {
		m.ConversationID = realID
		migrated = append(migrated, m)
	}
	delete(s.cache, models.DraftConversationID)
	s.cache[realID] = sortByCreatedAt(dedupeByID(append(s.cache[realID], migrated...)))

	if s.active != nil && s.active.IsDraft() {
		for i := range fresh {
			if fresh[i].ID == realID {
				conv := fresh[i]
				s.active = &conv
				break
			}
		}
		if s.active.IsDraft() {
			s.active.ID = realID
		}
	}

	if err := s.store.MigrateConversation(models.DraftConversationID, realID); err != nil {
		return err
	}
	return nil
}

func (s *Service) rollback(conversationID string, optimistic models.Message) {
	s.mu.Lock()
	current := s.cache[conversationID]
	filtered := current[:0:0]
	for _, m := range current {
		if m.ID != optimistic.ID {
			filtered = append(filtered, m)
		}
	}
	s.cache[conversationID] = filtered
	s.mu.Unlock()

	if err := s.store.DeleteMessage(conversationID, optimistic); err != nil {
		slog.Error("failed to delete rolled-back message", "error", err)
	}
}

// HandleConnect requests a history replay for the active conversation to
// repair any gap the disconnection caused. Drafts have no server history.
func (s *Service) HandleConnect() {
	s.mu.RLock()
	active := s.active
	socket := s.socket
	s.mu.RUnlock()

	if active == nil || active.IsDraft() || socket == nil {
		return
	}
	if err := socket.RequestHistory(active.ID); err != nil {
		slog.Warn("history request failed", "conversation", active.ID, "error", err)
	}
}

// HandleNewMessage folds a live message into the cache and bumps its
// conversation to the front of the directory. A message for a conversation
// we have never seen triggers a full background refresh instead of a
// partial patch.
func (s *Service) HandleNewMessage(msg models.Message) {
	chatID := msg.ConversationID

	s.mu.Lock()
	s.cache[chatID] = mergeLive(s.cache[chatID], msg)
	merged := s.cache[chatID]

	known := false
	for i := range s.conversations {
		if s.conversations[i].ID == chatID {
			conv := s.conversations[i]
			conv.LastMessage = msg.Summary()
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			s.conversations = append([]models.Conversation{conv}, s.conversations...)
			known = true
			break
		}
	}
	conversations := make([]models.Conversation, len(s.conversations))
	copy(conversations, s.conversations)
	s.mu.Unlock()

	if err := s.store.ReplaceMessages(chatID, merged); err != nil {
		slog.Error("failed to persist messages", "conversation", chatID, "error", err)
	}

	if s.messageCallback != nil {
		s.messageCallback(msg)
	}

	if !known {
		go func() {
			if _, err := s.Refresh(context.Background()); err != nil {
				slog.Warn("directory refresh after unknown conversation failed", "error", err)
			}
		}()
		return
	}

	if err := s.store.ReplaceConversations(conversations); err != nil {
		slog.Error("failed to persist conversations", "error", err)
	}
}

// HandleHistory reconciles a full server snapshot with the cached log,
// keeping pending placeholders the snapshot does not account for yet.
func (s *Service) HandleHistory(history []models.Message) {
	if len(history) == 0 {
		return
	}
	chatID := history[0].ConversationID

	s.mu.Lock()
	s.cache[chatID] = mergeHistory(s.cache[chatID], history)
	merged := s.cache[chatID]
	s.mu.Unlock()

	if err := s.store.ReplaceMessages(chatID, merged); err != nil {
		slog.Error("failed to persist messages", "conversation", chatID, "error", err)
	}
}

// mergeHistory produces the union of the server snapshot and any local
// pending messages not yet represented in it. A pending message counts as
// confirmed when the snapshot holds an entry with the same sender and
// content: temporary ids never match server ids, so content+sender is the
// only available reconciliation key.
func mergeHistory(current, history []models.Message) []models.Message {
	var pending []models.Message
	for _, m := range current {
		if !m.IsPending() {
			continue
		}
		confirmed := false
		for _, h := range history {
			if h.SenderID == m.SenderID && h.Content == m.Content {
				confirmed = true
				break
			}
		}
		if !confirmed {
			pending = append(pending, m)
		}
	}

	combined := make([]models.Message, 0, len(history)+len(pending))
	combined = append(combined, history...)
	combined = append(combined, pending...)
	return sortByCreatedAt(dedupeByID(combined))
}

// mergeLive appends a confirmed live message, dropping any pending
// placeholder it supersedes. Receiving the same id twice is a no-op.
func mergeLive(current []models.Message, msg models.Message) []models.Message {
	for _, m := range current {
		if m.ID == msg.ID {
			return current
		}
	}

	merged := make([]models.Message, 0, len(current)+1)
	for _, m := range current {
		if m.IsPending() && m.Content == msg.Content {
			continue
		}
		merged = append(merged, m)
	}
	return sortByCreatedAt(append(merged, msg))
}

func dedupeByID(messages []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(messages))
	out := messages[:0:0]
	for _, m := range messages {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sortByCreatedAt(messages []models.Message) []models.Message {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}

func findByCounterparty(conversations []models.Conversation, userID string) (models.Conversation, bool) {
	for _, c := range conversations {
		if c.HasParticipant(userID) {
			return c, true
		}
	}
	return models.Conversation{}, false
}
