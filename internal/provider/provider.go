// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"
	"fmt"

	"github.com/shineum/mail-relay-lite/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// Each provider hands a composed message to the target service
// (an SMTP relay, AWS SES, stdout).
type Provider interface {
	// Send delivers an email message through this provider.
	// It returns an error if the delivery fails; nothing is retried.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}

// TransportError reports a failure of the session with the upstream relay,
// as opposed to a failure to prepare the message.
type TransportError struct {
	Provider string
	// Stage is the protocol step that failed, e.g. "dial", "starttls", "auth", "rcpt".
	Stage string
	// Code is the relay's reply code, or 0 if none was received.
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s failed (%d): %v", e.Provider, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
