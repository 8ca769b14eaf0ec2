// Package email defines the outbound message model handed to delivery providers.
package email

// Email is a single outbound message. It lives for one request and is
// discarded once the provider returns.
type Email struct {
	From      string
	FromName  string
	To        []string
	Subject   string
	HtmlBody  string
	MessageID string

	// Inline parts are referenced from HtmlBody by their ContentID.
	Inline      []Attachment
	Attachments []Attachment
}

// Attachment represents a binary part of an email message.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

// Recipient returns the first recipient, or an empty string.
func (e *Email) Recipient() string {
	if len(e.To) == 0 {
		return ""
	}
	return e.To[0]
}
