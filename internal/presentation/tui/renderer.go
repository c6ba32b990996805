// Package tui renders engine responses for a terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Without a usable terminal style it falls back to the raw markdown.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// ResponseMarkdown lays a response out as markdown: the message, then quick
// actions, attachments and fallback options.
func ResponseMarkdown(resp domain.QualityResponse) string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(resp.Message, "\n•", "\n-"))
	sb.WriteString("\n")

	if len(resp.QuickActions) > 0 {
		sb.WriteString("\n")
		for _, qa := range resp.QuickActions {
			fmt.Fprintf(&sb, "`%s` ", qa.Label)
		}
		sb.WriteString("\n")
	}

	if resp.RichMedia != nil {
		fmt.Fprintf(&sb, "\n[%s](%s)\n", resp.RichMedia.Caption, resp.RichMedia.URL)
	}

	for _, f := range resp.FallbackOptions {
		fmt.Fprintf(&sb, "\n> %s\n", f.Message)
		for _, opt := range f.Options {
			fmt.Fprintf(&sb, "> - %s\n", opt)
		}
	}
	return sb.String()
}

// StatusLine summarizes a turn for the chat prompt.
func StatusLine(res *domain.TurnResult) string {
	return fmt.Sprintf("state=%s intent=%s confidence=%.2f (%s) quality=%.0f",
		res.ConversationState,
		res.MessageAnalysis.DetectedIntent,
		res.MessageAnalysis.IntentConfidence,
		res.MessageAnalysis.ConfidenceSource,
		res.QualityMetrics.QualityScore(),
	)
}
