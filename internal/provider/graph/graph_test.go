package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shineum/mail-relay-lite/internal/email"
)

var testConfig = GraphProviderConfig{
	TenantID:     "tenant",
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	Sender:       "sender@example.com",
}

// graphServer serves the token and sendMail endpoints of one test.
type graphServer struct {
	*httptest.Server
	tokenCalls atomic.Int32
	sendCalls  atomic.Int32
	lastAuth   atomic.Value
	lastBody   atomic.Value
	sendFn     func(w http.ResponseWriter)
	tokenFn    func(w http.ResponseWriter)
}

func newGraphServer(t *testing.T) *graphServer {
	t.Helper()
	gs := &graphServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		gs.tokenCalls.Add(1)
		if gs.tokenFn != nil {
			gs.tokenFn(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/sendMail", func(w http.ResponseWriter, r *http.Request) {
		gs.sendCalls.Add(1)
		gs.lastAuth.Store(r.Header.Get("Authorization"))
		var body sendMailRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gs.lastBody.Store(body)
		if gs.sendFn != nil {
			gs.sendFn(w)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	gs.Server = httptest.NewServer(mux)
	t.Cleanup(gs.Close)
	return gs
}

func (gs *graphServer) provider() *GraphProvider {
	return newWithOverrides(testConfig, gs.URL+"/sendMail", gs.URL+"/token", gs.Client())
}

func testMessage() *email.Email {
	return &email.Email{
		From:     "relay@example.com",
		To:       []string{"alice@example.com"},
		Subject:  "Monthly Report",
		HtmlBody: `<p>See attached</p><p><img src="cid:signature_image"></p>`,
		Inline: []email.Attachment{
			{Filename: "logo.png", ContentID: "signature_image", Content: []byte("png-bytes")},
		},
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("pdf-bytes")},
		},
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New(testConfig).Name(); got != "msgraph" {
		t.Errorf("Name(): got %q, want %q", got, "msgraph")
	}
}

func TestNew_URLs(t *testing.T) {
	t.Parallel()

	p := New(testConfig)
	want := "https://graph.microsoft.com/v1.0/users/sender@example.com/sendMail"
	if p.graphURL != want {
		t.Errorf("graphURL: got %q, want %q", p.graphURL, want)
	}
}

func TestBuildSendMailRequest_HTMLBody(t *testing.T) {
	t.Parallel()

	req := buildSendMailRequest(testMessage())

	if req.Message.Subject != "Monthly Report" {
		t.Errorf("Subject: got %q, want %q", req.Message.Subject, "Monthly Report")
	}
	if req.Message.Body.ContentType != "html" {
		t.Errorf("Body.ContentType: got %q, want %q", req.Message.Body.ContentType, "html")
	}
	if !strings.Contains(req.Message.Body.Content, "cid:signature_image") {
		t.Errorf("Body.Content should reference the inline image: %q", req.Message.Body.Content)
	}
	if len(req.Message.ToRecipients) != 1 || req.Message.ToRecipients[0].EmailAddress.Address != "alice@example.com" {
		t.Errorf("ToRecipients: got %+v", req.Message.ToRecipients)
	}
}

func TestBuildSendMailRequest_InlineAndAttachment(t *testing.T) {
	t.Parallel()

	req := buildSendMailRequest(testMessage())

	if len(req.Message.Attachments) != 2 {
		t.Fatalf("Attachments count: got %d, want 2", len(req.Message.Attachments))
	}

	inline := req.Message.Attachments[0]
	if !inline.IsInline {
		t.Error("inline part: IsInline should be true")
	}
	if inline.ContentID != "signature_image" {
		t.Errorf("inline ContentID: got %q, want %q", inline.ContentID, "signature_image")
	}
	if inline.Name != "logo.png" {
		t.Errorf("inline Name: got %q, want %q", inline.Name, "logo.png")
	}
	if inline.ContentBytes != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Errorf("inline ContentBytes: got %q", inline.ContentBytes)
	}

	att := req.Message.Attachments[1]
	if att.ODataType != "#microsoft.graph.fileAttachment" {
		t.Errorf("ODataType: got %q, want %q", att.ODataType, "#microsoft.graph.fileAttachment")
	}
	if att.IsInline {
		t.Error("attachment: IsInline should be false")
	}
	if att.ContentID != "" {
		t.Errorf("attachment ContentID: got %q, want empty", att.ContentID)
	}
	if att.ContentType != "application/pdf" {
		t.Errorf("ContentType: got %q, want %q", att.ContentType, "application/pdf")
	}
}

func TestBuildSendMailRequest_JSONFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(buildSendMailRequest(testMessage()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{`"isInline":true`, `"contentId":"signature_image"`, `"@odata.type":"#microsoft.graph.fileAttachment"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON missing %s: %s", want, data)
		}
	}
	if strings.Count(string(data), `"isInline"`) != 1 {
		t.Errorf("only the inline part should carry isInline: %s", data)
	}
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	p := gs.provider()

	if err := p.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := gs.lastAuth.Load(); got != "Bearer test-token" {
		t.Errorf("Authorization: got %v, want %q", got, "Bearer test-token")
	}
	body := gs.lastBody.Load().(sendMailRequest)
	if body.Message.Subject != "Monthly Report" {
		t.Errorf("Subject: got %q, want %q", body.Message.Subject, "Monthly Report")
	}
	if len(body.Message.Attachments) != 2 {
		t.Errorf("Attachments: got %d, want 2", len(body.Message.Attachments))
	}
}

func TestSend_ReusesToken(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	p := gs.provider()

	for i := 0; i < 3; i++ {
		if err := p.Send(context.Background(), testMessage()); err != nil {
			t.Fatalf("send %d: unexpected error: %v", i, err)
		}
	}

	if got := gs.tokenCalls.Load(); got != 1 {
		t.Errorf("token requests: got %d, want 1", got)
	}
	if got := gs.sendCalls.Load(); got != 3 {
		t.Errorf("send requests: got %d, want 3", got)
	}
}

func TestSend_GraphError(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	gs.sendFn = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"ErrorAccessDenied","message":"Access is denied."}}`))
	}
	p := gs.provider()

	err := p.Send(context.Background(), testMessage())
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %T: %v", err, err)
	}
	if sendErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode: got %d, want %d", sendErr.StatusCode, http.StatusForbidden)
	}
	if sendErr.Code != "ErrorAccessDenied" {
		t.Errorf("Code: got %q, want %q", sendErr.Code, "ErrorAccessDenied")
	}
	if !strings.Contains(err.Error(), "Access is denied.") {
		t.Errorf("error should carry the Graph message: %v", err)
	}
}

func TestSend_NoRetry(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	gs.sendFn = func(w http.ResponseWriter) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}
	p := gs.provider()

	err := p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := gs.sendCalls.Load(); got != 1 {
		t.Errorf("send requests: got %d, want 1", got)
	}
	if !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("error should name the status: %v", err)
	}
}

func TestSend_TokenFailure(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	gs.tokenFn = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
	}
	p := gs.provider()

	err := p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if gs.sendCalls.Load() != 0 {
		t.Error("sendMail must not be called without a token")
	}
	if !strings.Contains(err.Error(), "invalid_client") {
		t.Errorf("error should carry the token failure: %v", err)
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t)
	p := gs.provider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Send(ctx, testMessage()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if gs.sendCalls.Load() != 0 {
		t.Error("sendMail must not be called with a cancelled context")
	}
}
