// Package stdout implements a Provider that prints emails to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mail-relay-lite/internal/email"
)

// Provider prints email messages to stdout in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the email message in a readable format.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	if msg.FromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\n", msg.FromName, msg.From)
	} else {
		fmt.Fprintf(&b, "From: %s\n", msg.From)
	}
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.MessageID != "" {
		fmt.Fprintf(&b, "Message-ID: %s\n", msg.MessageID)
	}
	b.WriteString("Body:\n")
	b.WriteString(msg.HtmlBody + "\n")

	if len(msg.Inline) > 0 {
		fmt.Fprintf(&b, "Inline: %s\n", describeParts(msg.Inline))
	}
	if len(msg.Attachments) > 0 {
		fmt.Fprintf(&b, "Attachments: %s\n", describeParts(msg.Attachments))
	}

	b.WriteString("========================================\n")

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func describeParts(parts []email.Attachment) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		desc := fmt.Sprintf("%s (%s)", part.Filename, formatSize(len(part.Content)))
		if part.ContentID != "" {
			desc += " cid:" + part.ContentID
		}
		out = append(out, desc)
	}
	return strings.Join(out, ", ")
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
