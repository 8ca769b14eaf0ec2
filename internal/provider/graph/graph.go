// Package graph implements a Provider that sends emails via the Microsoft Graph API.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shineum/mail-relay-lite/internal/email"
)

const (
	tokenURLFormat  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	sendURLFormat   = "https://graph.microsoft.com/v1.0/users/%s/sendMail"
	graphScope      = "https://graph.microsoft.com/.default"
	requestTimeout  = 30 * time.Second
	maxErrorBodyLen = 64 << 10
)

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// GraphProvider sends emails via the Microsoft Graph API using OAuth2
// client credentials. The access token is cached and refreshed by the
// oauth2 transport shortly before it expires.
type GraphProvider struct {
	sender     string
	graphURL   string
	httpClient *http.Client
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	return newWithOverrides(
		cfg,
		fmt.Sprintf(sendURLFormat, url.PathEscape(cfg.Sender)),
		fmt.Sprintf(tokenURLFormat, url.PathEscape(cfg.TenantID)),
		&http.Client{Timeout: requestTimeout},
	)
}

// newWithOverrides creates a GraphProvider with custom URLs and base HTTP
// client, used for testing.
func newWithOverrides(cfg GraphProviderConfig, graphURL, tokenURL string, base *http.Client) *GraphProvider {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	// Token requests go through base; the context only carries the client.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = base.Timeout

	return &GraphProvider{
		sender:     cfg.Sender,
		graphURL:   graphURL,
		httpClient: client,
	}
}

// Send delivers an email message via the Microsoft Graph API. A failed
// request is returned to the caller as is; nothing is retried.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Email) error {
	bodyJSON, err := json.Marshal(buildSendMailRequest(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	sendErr := &SendError{StatusCode: resp.StatusCode, Message: string(body)}
	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		sendErr.Code = graphErrResp.Error.Code
		sendErr.Message = graphErrResp.Error.Message
	}
	return sendErr
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// SendError is a non-success response from the sendMail endpoint.
type SendError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.StatusCode, e.Message)
}
