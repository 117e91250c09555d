package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrUpstreamUnavailable covers every failure to get a completion: transport,
// non-2xx responses and empty choices.
var ErrUpstreamUnavailable = errors.New("language model unavailable")

// Message is one line of recent channel history.
type Message struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	IsBot   bool   `json:"is_bot"`
}

type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completer sends a single prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// FormatRecentContext renders history oldest first as "author: content"
// lines. Bot lines are tagged so the model can tell its own replies apart.
func FormatRecentContext(recent []Message) string {
	var b strings.Builder
	for _, m := range recent {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		author := m.Author
		if author == "" {
			author = "user"
		}
		if m.IsBot {
			author += " (bot)"
		}
		b.WriteString(author)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
