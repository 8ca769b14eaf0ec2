// Package relay implements a Provider that submits messages to an upstream
// SMTP relay over a STARTTLS-upgraded connection with password authentication.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/shineum/mail-relay-lite/internal/compose"
	"github.com/shineum/mail-relay-lite/internal/email"
	"github.com/shineum/mail-relay-lite/internal/provider"
)

// defaultTimeout bounds a whole relay session when none is configured.
const defaultTimeout = 30 * time.Second

// Config holds the settings for a relay Provider.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the envelope sender used when the message has none.
	From string

	// LocalName is the host name sent with EHLO.
	LocalName string

	// Timeout bounds dial, TLS handshake, authentication and transfer together.
	Timeout time.Duration

	// TLSConfig is used for STARTTLS. If nil, the relay certificate is
	// verified against the system roots for Host.
	TLSConfig *tls.Config
}

// Provider delivers messages through an SMTP relay. Each Send opens and
// closes its own session; nothing is shared between calls.
type Provider struct {
	cfg Config
}

// New creates a relay Provider with the given configuration.
func New(cfg Config) *Provider {
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TLSConfig == nil {
		cfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.TLSConfig.ServerName == "" && !cfg.TLSConfig.InsecureSkipVerify {
		cfg.TLSConfig = cfg.TLSConfig.Clone()
		cfg.TLSConfig.ServerName = cfg.Host
	}
	return &Provider{cfg: cfg}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// Addr returns the relay address in host:port form.
func (p *Provider) Addr() string {
	return net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

// Send encodes msg and transmits it in a single relay session. The message
// is fully encoded before the relay is dialed. The session is abandoned when
// ctx is done or the configured timeout elapses.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	raw, err := compose.Encode(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr())
	if err != nil {
		return p.fail(ctx, "dial", err)
	}
	defer conn.Close()

	// The client sets per-command deadlines; closing the connection when
	// ctx ends bounds the session as a whole.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	c := smtp.NewClient(conn)
	c.CommandTimeout = p.cfg.Timeout
	c.SubmissionTimeout = p.cfg.Timeout
	defer c.Close()

	if err := p.submit(ctx, c, msg, raw); err != nil {
		return err
	}

	// The relay has accepted the message at this point; a failed QUIT
	// does not undo that.
	_ = c.Quit()
	return nil
}

func (p *Provider) submit(ctx context.Context, c *smtp.Client, msg *email.Email, raw []byte) error {
	if err := c.Hello(p.cfg.LocalName); err != nil {
		return p.fail(ctx, "hello", err)
	}

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return p.fail(ctx, "starttls", errors.New("relay does not offer STARTTLS"))
	}
	if err := c.StartTLS(p.cfg.TLSConfig); err != nil {
		return p.fail(ctx, "starttls", err)
	}

	if p.cfg.Username != "" {
		auth := sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return p.fail(ctx, "auth", err)
		}
	}

	if err := c.Mail(p.sender(msg), nil); err != nil {
		return p.fail(ctx, "mail", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return p.fail(ctx, "rcpt", err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return p.fail(ctx, "data", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return p.fail(ctx, "data", err)
	}
	if err := w.Close(); err != nil {
		return p.fail(ctx, "data", err)
	}
	return nil
}

func (p *Provider) sender(msg *email.Email) string {
	if msg.From != "" {
		return msg.From
	}
	if p.cfg.From != "" {
		return p.cfg.From
	}
	return p.cfg.Username
}

// fail wraps err as a TransportError for stage. A network error caused by
// the session deadline or cancellation is reported as the context error.
func (p *Provider) fail(ctx context.Context, stage string, err error) error {
	te := &provider.TransportError{Provider: p.Name(), Stage: stage, Err: err}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		te.Code = smtpErr.Code
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return te
}
