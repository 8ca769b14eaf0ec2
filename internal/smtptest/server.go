// Package smtptest provides an in-process SMTP relay for tests. It speaks
// STARTTLS with a self-signed certificate, checks AUTH PLAIN credentials
// and records every accepted message.
package smtptest

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"

	mtls "github.com/shineum/mail-relay-lite/internal/tls"
)

var (
	errAuthRequired = &smtp.SMTPError{
		Code:         530,
		EnhancedCode: smtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errAuthFailed = &smtp.SMTPError{
		Code:         535,
		EnhancedCode: smtp.EnhancedCode{5, 7, 8},
		Message:      "Authentication credentials invalid",
	}
	errRecipientRejected = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Recipient address rejected",
	}
	errUnparseable = &smtp.SMTPError{
		Code:         554,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Message could not be parsed",
	}
)

// Options configures a test relay.
type Options struct {
	// Username and Password enable AUTH PLAIN when both are set.
	Username string
	Password string

	// RejectRecipients are answered with 550 at RCPT TO.
	RejectRecipients []string

	// DisableSTARTTLS stops the relay from offering STARTTLS.
	DisableSTARTTLS bool

	// DataDelay stalls the DATA reply, to exercise client timeouts.
	DataDelay time.Duration
}

// Message is a message accepted by the relay.
type Message struct {
	From     string
	To       []string
	Raw      []byte
	Envelope *enmime.Envelope
}

// Server is a running test relay.
type Server struct {
	opts     Options
	auth     *Authenticator
	rejected map[string]bool
	cert     *tls.Certificate
	listener net.Listener
	sessions atomic.Int32
	mu       sync.Mutex
	messages []Message
}

// NewServer starts a relay on a loopback port and stops it when the test ends.
func NewServer(t testing.TB, opts Options) *Server {
	t.Helper()

	serverTLS, err := mtls.ServerConfig("", "")
	if err != nil {
		t.Fatalf("smtptest: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("smtptest: failed to listen: %v", err)
	}

	s := &Server{
		opts:     opts,
		auth:     NewAuthenticator(opts.Username, opts.Password),
		rejected: make(map[string]bool),
		cert:     &serverTLS.Certificates[0],
		listener: ln,
	}
	for _, rcpt := range opts.RejectRecipients {
		s.rejected[strings.ToLower(rcpt)] = true
	}

	srv := smtp.NewServer(&backend{server: s})
	srv.Domain = "localhost"
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = 10 * 1024 * 1024
	srv.MaxRecipients = 50
	if !opts.DisableSTARTTLS {
		srv.TLSConfig = serverTLS
	}

	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	return s
}

// Addr returns the relay address in host:port form.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the relay IP address.
func (s *Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the relay port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// ClientTLSConfig returns a client configuration that trusts the relay's
// self-signed certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	pool, err := mtls.CertPool(s.cert)
	if err != nil {
		panic("smtptest: " + err.Error())
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: "localhost",
		MinVersion: tls.VersionTLS12,
	}
}

// Sessions returns how many connections the relay has accepted.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// Messages returns a copy of the messages accepted so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Server) record(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

type backend struct {
	server *Server
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	b.server.sessions.Add(1)
	return &session{server: b.server}, nil
}

// session tracks one SMTP transaction.
type session struct {
	server *Server
	authed bool
	from   string
	to     []string
}

func (s *session) AuthMechanisms() []string {
	if !s.server.auth.Enabled() {
		return nil
	}
	return []string{sasl.Plain}
}

func (s *session) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if err := s.server.auth.Verify(username, password); err != nil {
			return errAuthFailed
		}
		s.authed = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.server.auth.Enabled() && !s.authed {
		return errAuthRequired
	}
	s.from = from
	s.to = nil
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.server.rejected[strings.ToLower(to)] {
		return errRecipientRejected
	}
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return errUnparseable
	}

	if d := s.server.opts.DataDelay; d > 0 {
		time.Sleep(d)
	}

	s.server.record(Message{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Raw:      raw,
		Envelope: env,
	})
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}
