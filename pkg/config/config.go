package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Record sources
const (
	RecordSourceDNS      = "dns"
	RecordSourceProvider = "provider"
)

// DefaultDKIMSelectors are probed when DKIM_SELECTORS is not set
var DefaultDKIMSelectors = []string{"default", "google", "selector1", "selector2", "k1", "mail", "dkim"}

// Config holds all application configuration
type Config struct {
	// Telegram
	TelegramBotToken string
	AllowedUsers     []int64

	// Cloudflare
	CloudflareAPIToken string
	CloudflareAPIKey   string
	CloudflareEmail    string
	CloudflareAPIBase  string
	ProviderTimeout    time.Duration

	// Resolution
	RecordSource   string
	DNSNameservers []string
	DNSTimeout     time.Duration
	DKIMSelectors  []string

	// Remediation defaults
	SPFInclude         string
	DMARCReportAddress string
	MXTarget           string
	MXPriority         uint16
	ApexTarget         string
	WWWTarget          string
	TTL                int

	// HTTP
	HTTPListen string

	// Storage
	DataDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		CloudflareAPIToken: getEnv("CLOUDFLARE_API_TOKEN", ""),
		CloudflareAPIKey:   getEnv("CLOUDFLARE_API_KEY", ""),
		CloudflareEmail:    getEnv("CLOUDFLARE_EMAIL", ""),
		CloudflareAPIBase:  getEnv("CLOUDFLARE_API_BASE", ""),
		RecordSource:       strings.ToLower(getEnv("RECORD_SOURCE", RecordSourceDNS)),
		DNSNameservers:     splitList(getEnv("DNS_NAMESERVERS", "")),
		DKIMSelectors:      splitList(getEnv("DKIM_SELECTORS", "")),
		SPFInclude:         getEnv("FIX_SPF_INCLUDE", ""),
		DMARCReportAddress: getEnv("FIX_DMARC_RUA", ""),
		MXTarget:           getEnv("FIX_MX_TARGET", ""),
		ApexTarget:         getEnv("FIX_APEX_A", ""),
		WWWTarget:          getEnv("FIX_WWW_CNAME", ""),
		HTTPListen:         getEnv("HTTP_LISTEN", ":8080"),
		DataDir:            getEnv("DATA_DIR", "./data"),
	}
	if len(cfg.DKIMSelectors) == 0 {
		cfg.DKIMSelectors = append([]string(nil), DefaultDKIMSelectors...)
	}

	var err error
	if cfg.DNSTimeout, err = getDuration("DNS_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.TTL, err = getInt("FIX_TTL", 3600); err != nil {
		return nil, err
	}
	priority, err := getInt("FIX_MX_PRIORITY", 10)
	if err != nil {
		return nil, err
	}
	if priority < 0 || priority > 65535 {
		return nil, fmt.Errorf("FIX_MX_PRIORITY out of range: %d", priority)
	}
	cfg.MXPriority = uint16(priority)

	// Parse allowed users
	if usersStr := getEnv("TELEGRAM_ALLOWED_USERS", ""); usersStr != "" {
		for _, idStr := range splitList(usersStr) {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in TELEGRAM_ALLOWED_USERS: %s", idStr)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, id)
		}
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration. Missing provider credentials are
// allowed: fixes then report a not-configured result.
func (c *Config) Validate() error {
	switch c.RecordSource {
	case RecordSourceDNS, RecordSourceProvider:
	default:
		return fmt.Errorf("RECORD_SOURCE must be %q or %q, got %q", RecordSourceDNS, RecordSourceProvider, c.RecordSource)
	}

	if c.RecordSource == RecordSourceProvider && !c.ProviderConfigured() {
		return fmt.Errorf("RECORD_SOURCE=provider requires CLOUDFLARE_API_TOKEN or CLOUDFLARE_API_KEY and CLOUDFLARE_EMAIL")
	}

	if c.CloudflareAPIToken == "" && (c.CloudflareAPIKey == "") != (c.CloudflareEmail == "") {
		return fmt.Errorf("CLOUDFLARE_API_KEY and CLOUDFLARE_EMAIL must be set together")
	}

	if c.DNSTimeout <= 0 || c.ProviderTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.TTL < 0 {
		return fmt.Errorf("FIX_TTL must not be negative")
	}

	return nil
}

// UseAPIToken returns true if API token should be used
func (c *Config) UseAPIToken() bool {
	return c.CloudflareAPIToken != ""
}

// ProviderConfigured reports whether any provider credentials are present
func (c *Config) ProviderConfigured() bool {
	return c.CloudflareAPIToken != "" || (c.CloudflareAPIKey != "" && c.CloudflareEmail != "")
}

// IsAllowedUser reports whether a Telegram user may use the bot. An empty
// allow list admits everyone.
func (c *Config) IsAllowedUser(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
