package commands

import (
	"context"
	"fmt"
	"strings"

	"bantuinchat/internal/chat"
	"bantuinchat/internal/models"
)

const previewLength = 48

// Inbox prints the conversation directory, most recently active first. When
// the backend is unreachable it falls back to the cached snapshot.
func Inbox(ctx context.Context, svc *chat.Service, self models.User) error {
	if err := svc.OpenInbox(ctx); err != nil {
		fmt.Println("Backend unreachable, showing cached conversations.")
	}

	conversations := svc.Conversations()
	if len(conversations) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	for _, conv := range conversations {
		name := "(unknown)"
		counterpartyID := ""
		if other, ok := conv.Counterparty(self.ID); ok {
			name = other.FullName
			counterpartyID = other.ID
		}

		preview := ""
		when := ""
		if conv.LastMessage != nil {
			preview = truncate(conv.LastMessage.Content, previewLength)
			when = conv.LastMessage.CreatedAt.Local().Format("02 Jan 15:04")
		}

		fmt.Printf("%-24s %-12s %s  %s\n", name, counterpartyID, when, preview)
	}
	return nil
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
