package commands

import (
	"fmt"
	"html/template"
	"os"

	"bantuinchat/internal/chat"
	"bantuinchat/internal/content"
)

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Chat transcript</title></head>
<body>
<h1>Chat transcript</h1>
{{range .}}<div class="message">
  <p><strong>{{.Sender}}</strong> <em>{{.When}}</em></p>
  {{.Body}}
</div>
{{end}}</body>
</html>
`))

type transcriptEntry struct {
	Sender string
	When   string
	Body   template.HTML
}

// Export writes one conversation's cached log to an HTML file. Message
// bodies are rendered as markdown and sanitized.
func Export(svc *chat.Service, conversationID, outPath string) error {
	messages := svc.Messages(conversationID)
	if len(messages) == 0 {
		return fmt.Errorf("no cached messages for conversation %s", conversationID)
	}

	entries := make([]transcriptEntry, 0, len(messages))
	for _, msg := range messages {
		body, err := content.RenderMarkdown(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to render message %s: %w", msg.ID, err)
		}
		sender := msg.Sender.FullName
		if sender == "" {
			sender = msg.SenderID
		}
		entries = append(entries, transcriptEntry{
			Sender: sender,
			When:   msg.CreatedAt.Local().Format("02 Jan 2006 15:04"),
			Body:   template.HTML(body),
		})
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer func() { _ = f.Close() }()

	if err := transcriptTemplate.Execute(f, entries); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	fmt.Printf("Wrote %d messages to %s\n", len(entries), outPath)
	return nil
}
