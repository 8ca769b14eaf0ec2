package compose

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"gopkg.in/gomail.v2"

	"github.com/shineum/mail-relay-lite/internal/email"
)

// Encode renders msg as a MIME document. Inline parts are grouped with the
// HTML body in multipart/related; attachments go in multipart/mixed. Binary
// parts are base64 encoded.
func Encode(msg *email.Email) ([]byte, error) {
	m := gomail.NewMessage()

	if msg.FromName != "" {
		m.SetAddressHeader("From", msg.From, msg.FromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.MessageID != "" {
		m.SetHeader("Message-ID", msg.MessageID)
	}
	m.SetBody("text/html", msg.HtmlBody)

	for _, part := range msg.Inline {
		m.Embed(part.Filename, partSettings(part, "inline")...)
	}
	for _, part := range msg.Attachments {
		m.Attach(part.Filename, partSettings(part, "attachment")...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// partSettings serves the part from memory; gomail would otherwise open
// the named file when the message is written. The type and disposition
// headers are set here so the filename parameter is quoted, or RFC 2231
// encoded when it is not plain ASCII.
func partSettings(part email.Attachment, disposition string) []gomail.FileSetting {
	header := map[string][]string{
		"Content-Type":        {mime.FormatMediaType(partType(part), map[string]string{"name": part.Filename})},
		"Content-Disposition": {mime.FormatMediaType(disposition, map[string]string{"filename": part.Filename})},
	}
	if part.ContentID != "" {
		header["Content-ID"] = []string{"<" + part.ContentID + ">"}
	}

	content := part.Content
	return []gomail.FileSetting{
		gomail.SetHeader(header),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}),
	}
}

// partType returns the bare media type of part, guessing from the file
// extension when none was given.
func partType(part email.Attachment) string {
	ct := part.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(part.Filename))
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return AttachmentContentType
}
