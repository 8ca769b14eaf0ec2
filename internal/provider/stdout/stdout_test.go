package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/mail-relay-lite/internal/email"
)

func TestSend_BasicEmail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := &email.Email{
		From:      "sender@example.com",
		To:        []string{"alice@example.com"},
		Subject:   "Monthly Report",
		HtmlBody:  "<p>Please find the report attached.</p>",
		MessageID: "<abc@example.com>",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	checks := []string{
		"From: sender@example.com\n",
		"To: alice@example.com\n",
		"Subject: Monthly Report\n",
		"Message-ID: <abc@example.com>\n",
		"<p>Please find the report attached.</p>",
	}
	for _, want := range checks {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "Attachments:") {
		t.Error("output should not contain Attachments line when there are none")
	}
	if strings.Contains(output, "Inline:") {
		t.Error("output should not contain Inline line when there are none")
	}
	if !strings.HasPrefix(output, "========================================\n") {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, "========================================\n") {
		t.Error("output should end with separator line")
	}
}

func TestSend_FromName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := &email.Email{
		From:     "sender@example.com",
		FromName: "Chamber Mailer",
		To:       []string{"alice@example.com"},
		Subject:  "Named",
		HtmlBody: "<p>Hi</p>",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "From: Chamber Mailer <sender@example.com>") {
		t.Errorf("output missing display name: %q", buf.String())
	}
}

func TestSend_WithInlineAndAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := &email.Email{
		From:     "sender@example.com",
		To:       []string{"alice@example.com"},
		Subject:  "Monthly Report",
		HtmlBody: "<p>Please find the report attached.</p>",
		Inline: []email.Attachment{
			{Filename: "logo.png", ContentID: "signature_image", Content: make([]byte, 512)},
		},
		Attachments: []email.Attachment{
			{
				Filename:    "report.pdf",
				ContentType: "application/octet-stream",
				Content:     make([]byte, 1258291), // ~1.2 MB
			},
			{
				Filename:    "summary.xlsx",
				ContentType: "application/octet-stream",
				Content:     make([]byte, 46080), // ~45 KB
			},
		},
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Inline: logo.png (512 B) cid:signature_image\n") {
		t.Errorf("output missing inline line: %q", output)
	}
	if !strings.Contains(output, "Attachments: report.pdf (1.2 MB), summary.xlsx (45.0 KB)\n") {
		t.Errorf("output missing attachments line: %q", output)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestSend_WriteError(t *testing.T) {
	t.Parallel()

	p := NewWithWriter(failingWriter{})

	err := p.Send(context.Background(), &email.Email{To: []string{"a@example.com"}})
	if err == nil {
		t.Fatal("expected error when the writer fails")
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	p := New()
	if p.Name() != "stdout" {
		t.Errorf("Name: got %q, want %q", p.Name(), "stdout")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d): got %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
