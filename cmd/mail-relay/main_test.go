package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shineum/mail-relay-lite/internal/config"
	"github.com/shineum/mail-relay-lite/internal/provider/graph"
	"github.com/shineum/mail-relay-lite/internal/provider/relay"
	"github.com/shineum/mail-relay-lite/internal/provider/stdout"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderSMTP,
		HTTP:     config.HTTPConfig{MaxConcurrentSends: 2},
		Relay: config.RelayConfig{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "relay@example.com",
			Password: "secret",
		},
		Mail: config.MailConfig{
			DefaultSubject: "Test Email",
			DefaultMessage: "This is a test email.",
		},
	}
}

func TestSelectProvider(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("smtp", func(t *testing.T) {
		p, err := selectProvider(context.Background(), testConfig(), log)
		require.NoError(t, err)
		rp, ok := p.(*relay.Provider)
		require.True(t, ok, "expected relay provider, got %T", p)
		assert.Equal(t, "smtp.example.com:587", rp.Addr())
	})

	t.Run("stdout", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = config.ProviderStdout
		p, err := selectProvider(context.Background(), cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &stdout.Provider{}, p)
	})

	t.Run("graph", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = config.ProviderGraph
		cfg.Graph = config.GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "graph@example.com"}
		p, err := selectProvider(context.Background(), cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &graph.GraphProvider{}, p)
		assert.Equal(t, "msgraph", p.Name())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = "carrier-pigeon"
		_, err := selectProvider(context.Background(), cfg, log)
		assert.Error(t, err)
	})

	t.Run("bad CA file", func(t *testing.T) {
		cfg := testConfig()
		cfg.Relay.CAFile = "/nonexistent/ca.pem"
		_, err := selectProvider(context.Background(), cfg, log)
		assert.Error(t, err)
	})
}

func TestNewEngine_Routes(t *testing.T) {
	cfg := testConfig()
	cfg.Certificate = config.CertificateConfig{OutputDir: t.TempDir(), PublicURL: "http://relay.test"}
	engine, err := newEngine(cfg, stdout.NewWithWriter(&strings.Builder{}), zaptest.NewLogger(t))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello, World!", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/send-email", strings.NewReader(`{"to":"alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/generate-pdf", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "All fields are required.")

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailrelay_deliveries_total")
}

func TestNewEngine_BadCertificateAssets(t *testing.T) {
	cfg := testConfig()
	cfg.Certificate = config.CertificateConfig{
		OutputDir: t.TempDir(),
		AssetsDir: "/nonexistent/assets",
	}
	_, err := newEngine(cfg, stdout.NewWithWriter(&strings.Builder{}), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.Password = ""
	cfg.Logging.Level = "error"

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_PASSWORD")
}
