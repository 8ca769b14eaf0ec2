package graph

import (
	"encoding/base64"

	"github.com/shineum/mail-relay-lite/internal/email"
)

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

type sendMailMessage struct {
	Subject      string            `json:"subject"`
	Body         messageBody       `json:"body"`
	ToRecipients []recipient       `json:"toRecipients"`
	Attachments  []graphAttachment `json:"attachments,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// graphAttachment is a fileAttachment. Inline parts set IsInline and the
// ContentID the HTML body refers to.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
	IsInline     bool   `json:"isInline,omitempty"`
	ContentID    string `json:"contentId,omitempty"`
}

type graphErrorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts an email.Email into a Graph API sendMail request body.
func buildSendMailRequest(msg *email.Email) *sendMailRequest {
	toRecipients := make([]recipient, 0, len(msg.To))
	for _, addr := range msg.To {
		toRecipients = append(toRecipients, recipient{
			EmailAddress: emailAddress{Address: addr},
		})
	}

	attachments := make([]graphAttachment, 0, len(msg.Inline)+len(msg.Attachments))
	for _, part := range msg.Inline {
		att := fileAttachment(part)
		att.IsInline = true
		att.ContentID = part.ContentID
		attachments = append(attachments, att)
	}
	for _, part := range msg.Attachments {
		attachments = append(attachments, fileAttachment(part))
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject:      msg.Subject,
			Body:         messageBody{ContentType: "html", Content: msg.HtmlBody},
			ToRecipients: toRecipients,
			Attachments:  attachments,
		},
	}
}

func fileAttachment(part email.Attachment) graphAttachment {
	return graphAttachment{
		ODataType:    fileAttachmentType,
		Name:         part.Filename,
		ContentType:  part.ContentType,
		ContentBytes: base64.StdEncoding.EncodeToString(part.Content),
	}
}
