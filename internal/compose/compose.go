// Package compose turns a send-email request into an outbound message and
// encodes messages as RFC 5322 MIME documents.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/mail-relay-lite/internal/email"
)

// SignatureContentID is the Content-ID of the inline image. The HTML body
// references it as cid:signature_image.
const SignatureContentID = "signature_image"

// AttachmentContentType is the type given to every attachment part.
const AttachmentContentType = "application/octet-stream"

// ErrMissingRecipient is returned by Build when the request has no recipient.
var ErrMissingRecipient = errors.New("missing recipient email address")

// FileKind identifies which optional file of a request failed to load.
type FileKind string

const (
	KindImage      FileKind = "image"
	KindAttachment FileKind = "attachment"
)

// FileError reports a failure to read the image or attachment file.
type FileError struct {
	Kind FileKind
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to read %s file %q: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Request is the JSON body accepted by the send-email endpoint.
type Request struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
	ImagePath      string `json:"image_path"`
	AttachmentPath string `json:"attachment_path"`
}

// Defaults holds the values applied when a request leaves a field empty,
// plus the sender identity stamped on every message.
type Defaults struct {
	Subject   string
	Message   string
	Signature string
	From      string
	FromName  string
}

var bodyTemplate = template.Must(template.New("body").Parse(`<html>
    <body>
        <p>{{.Message}}</p>
        <p>{{.Signature}}</p>
{{- if .Image}}
        <p><img src="cid:signature_image"></p>
{{- end}}
    </body>
</html>
`))

type bodyData struct {
	Message   string
	Signature template.HTML
	Image     bool
}

// Build validates req and assembles the outbound message. The image and
// attachment files are read here, so any file error surfaces before a
// provider is contacted.
func Build(req Request, d Defaults) (*email.Email, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return nil, ErrMissingRecipient
	}

	subject := req.Subject
	if subject == "" {
		subject = d.Subject
	}
	message := req.Message
	if message == "" {
		message = d.Message
	}

	msg := &email.Email{
		From:      d.From,
		FromName:  d.FromName,
		To:        []string{to},
		Subject:   subject,
		MessageID: newMessageID(d.From),
	}

	if req.ImagePath != "" {
		content, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return nil, &FileError{Kind: KindImage, Path: req.ImagePath, Err: err}
		}
		msg.Inline = append(msg.Inline, email.Attachment{
			Filename:  filepath.Base(req.ImagePath),
			ContentID: SignatureContentID,
			Content:   content,
		})
	}

	if req.AttachmentPath != "" {
		content, err := os.ReadFile(req.AttachmentPath)
		if err != nil {
			return nil, &FileError{Kind: KindAttachment, Path: req.AttachmentPath, Err: err}
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    filepath.Base(req.AttachmentPath),
			ContentType: AttachmentContentType,
			Content:     content,
		})
	}

	body, err := renderBody(message, d.Signature, len(msg.Inline) > 0)
	if err != nil {
		return nil, err
	}
	msg.HtmlBody = body

	return msg, nil
}

func renderBody(message, signature string, image bool) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, bodyData{
		Message:   message,
		Signature: template.HTML(signature),
		Image:     image,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render body: %w", err)
	}
	return buf.String(), nil
}

// newMessageID returns a Message-ID in the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
