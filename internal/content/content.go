package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy = bluemonday.UGCPolicy()

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	)
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is used for sanitizing message content before it leaves the client.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// ValidateMessage checks that a message has visible content after trimming.
func ValidateMessage(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("message cannot be empty")
	}
	return nil
}

// RenderMarkdown converts message content to HTML for transcript export.
// The result passes through the sanitizer so markdown input cannot smuggle
// raw HTML into the output.
func RenderMarkdown(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
