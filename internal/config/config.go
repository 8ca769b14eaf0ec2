// Package config provides environment-variable-first configuration loading
// with optional YAML file and .env fallbacks for the mail relay services.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in the PROVIDER setting.
const (
	ProviderSMTP   = "smtp"
	ProviderSES    = "ses"
	ProviderGraph  = "graph"
	ProviderStdout = "stdout"
)

const (
	defaultRelayPort          = 587
	defaultMaxConcurrentSends = 16
)

// DotEnvFile is the optional dotenv file read before environment variables.
var DotEnvFile = ".env"

// Config holds the complete application configuration.
type Config struct {
	Provider    string            `yaml:"provider"`
	HTTP        HTTPConfig        `yaml:"http"`
	Greeter     GreeterConfig     `yaml:"greeter"`
	Relay       RelayConfig       `yaml:"relay"`
	Mail        MailConfig        `yaml:"mail"`
	SES         SESConfig         `yaml:"ses"`
	Graph       GraphConfig       `yaml:"graph"`
	Certificate CertificateConfig `yaml:"certificate"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HTTPConfig holds the mail relay HTTP server configuration.
type HTTPConfig struct {
	Listen             string        `yaml:"listen"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrentSends int           `yaml:"max_concurrent_sends"`
	Debug              bool          `yaml:"debug"`
}

// GreeterConfig holds the greeting service configuration.
type GreeterConfig struct {
	Listen string `yaml:"listen"`
}

// RelayConfig holds the upstream SMTP relay settings. There is
// no default for the credentials.
type RelayConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	From               string        `yaml:"from"`
	FromName           string        `yaml:"from_name"`
	LocalName          string        `yaml:"local_name"`
	Timeout            time.Duration `yaml:"timeout"`
	CAFile             string        `yaml:"ca_file"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// MailConfig holds the content defaults applied to outbound messages.
type MailConfig struct {
	DefaultSubject string `yaml:"default_subject"`
	DefaultMessage string `yaml:"default_message"`
	Signature      string `yaml:"signature"`
}

// SESConfig holds AWS SES v2 configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// CertificateConfig holds the PDF certificate settings. PublicURL is the
// externally reachable base URL that download links and QR codes point at.
type CertificateConfig struct {
	OutputDir string `yaml:"output_dir"`
	PublicURL string `yaml:"public_url"`
	AssetsDir string `yaml:"assets_dir"`
	FontFile  string `yaml:"font_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	loadDotEnv()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Provider = strings.ToLower(cfg.Provider)

	loadDotEnv()
	cfg.applyEnvVars()

	return cfg, nil
}

// RelayConfigured returns true if the relay host and both credentials are set.
func (c *Config) RelayConfigured() bool {
	return c.Relay.Host != "" &&
		c.Relay.Username != "" &&
		c.Relay.Password != ""
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// GraphConfigured returns true if all required Graph settings are present.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// Sender returns the envelope sender for relay deliveries.
func (c *Config) Sender() string {
	if c.Relay.From != "" {
		return c.Relay.From
	}
	return c.Relay.Username
}

// Validate checks that the selected provider has everything it needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSMTP:
		var missing []string
		if c.Relay.Host == "" {
			missing = append(missing, "RELAY_HOST")
		}
		if c.Relay.Username == "" {
			missing = append(missing, "RELAY_USERNAME")
		}
		if c.Relay.Password == "" {
			missing = append(missing, "RELAY_PASSWORD")
		}
		if len(missing) > 0 {
			return fmt.Errorf("smtp provider requires %s", strings.Join(missing, ", "))
		}
		if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
			return fmt.Errorf("invalid relay port %d", c.Relay.Port)
		}
		// The relay must give up before the HTTP write deadline.
		if c.HTTP.WriteTimeout > 0 && c.Relay.Timeout >= c.HTTP.WriteTimeout {
			return fmt.Errorf("relay timeout %v must be shorter than http write timeout %v",
				c.Relay.Timeout, c.HTTP.WriteTimeout)
		}
	case ProviderGraph:
		if !c.GraphConfigured() {
			return errors.New("graph provider requires GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER")
		}
	case ProviderSES:
		if !c.SESConfigured() {
			return errors.New("ses provider requires SES_REGION and SES_SENDER")
		}
	case ProviderStdout:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.HTTP.MaxConcurrentSends <= 0 {
		return fmt.Errorf("invalid max concurrent sends %d", c.HTTP.MaxConcurrentSends)
	}
	return nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Provider = ProviderSMTP

	c.HTTP.Listen = ":5002"
	c.HTTP.ReadTimeout = 15 * time.Second
	c.HTTP.WriteTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.HTTP.MaxConcurrentSends = defaultMaxConcurrentSends

	c.Greeter.Listen = ":5000"

	c.Relay.Port = defaultRelayPort
	c.Relay.LocalName = "localhost"
	c.Relay.Timeout = 30 * time.Second

	c.Mail.DefaultSubject = "Test Email"
	c.Mail.DefaultMessage = "This is a test email."
	c.Mail.Signature = "Best regards,<br>Amman Chamber Of Commerce"

	c.Certificate.OutputDir = "output"
	c.Certificate.PublicURL = "http://localhost:5002"

	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	setString(&c.HTTP.Listen, "HTTP_LISTEN")
	setDuration(&c.HTTP.ReadTimeout, "HTTP_READ_TIMEOUT")
	setDuration(&c.HTTP.WriteTimeout, "HTTP_WRITE_TIMEOUT")
	setDuration(&c.HTTP.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT")
	setInt(&c.HTTP.MaxConcurrentSends, "HTTP_MAX_CONCURRENT_SENDS")
	setBool(&c.HTTP.Debug, "GIN_DEBUG")

	setString(&c.Greeter.Listen, "GREETER_LISTEN")

	setString(&c.Relay.Host, "RELAY_HOST")
	setInt(&c.Relay.Port, "RELAY_PORT")
	setString(&c.Relay.Username, "RELAY_USERNAME")
	setString(&c.Relay.Password, "RELAY_PASSWORD")
	setString(&c.Relay.From, "RELAY_FROM")
	setString(&c.Relay.FromName, "RELAY_FROM_NAME")
	setString(&c.Relay.LocalName, "RELAY_LOCAL_NAME")
	setDuration(&c.Relay.Timeout, "RELAY_TIMEOUT")
	setString(&c.Relay.CAFile, "RELAY_CA_FILE")
	setBool(&c.Relay.InsecureSkipVerify, "RELAY_INSECURE_SKIP_VERIFY")

	setString(&c.Mail.DefaultSubject, "MAIL_DEFAULT_SUBJECT")
	setString(&c.Mail.DefaultMessage, "MAIL_DEFAULT_MESSAGE")
	setString(&c.Mail.Signature, "MAIL_SIGNATURE")

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	setString(&c.Graph.TenantID, "GRAPH_TENANT_ID")
	setString(&c.Graph.ClientID, "GRAPH_CLIENT_ID")
	setString(&c.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	setString(&c.Graph.Sender, "GRAPH_SENDER")

	setString(&c.Certificate.OutputDir, "CERT_OUTPUT_DIR")
	setString(&c.Certificate.PublicURL, "CERT_PUBLIC_URL")
	setString(&c.Certificate.AssetsDir, "CERT_ASSETS_DIR")
	setString(&c.Certificate.FontFile, "CERT_FONT_FILE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// loadDotEnv populates the process environment from DotEnvFile without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv() {
	if DotEnvFile == "" {
		return
	}
	if _, err := os.Stat(DotEnvFile); err != nil {
		return
	}
	_ = godotenv.Load(DotEnvFile)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt, setDuration and setBool keep the current value when the variable
// does not parse.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
