package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp keeps godotenv from picking up a .env file in the package directory
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "CLOUDFLARE_API_TOKEN", "CLOUDFLARE_API_KEY", "CLOUDFLARE_EMAIL",
		"RECORD_SOURCE", "DNS_TIMEOUT", "PROVIDER_TIMEOUT", "FIX_TTL", "FIX_MX_PRIORITY",
		"DKIM_SELECTORS", "TELEGRAM_ALLOWED_USERS", "HTTP_LISTEN",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RecordSource != RecordSourceDNS {
		t.Errorf("expected dns source, got %s", cfg.RecordSource)
	}
	if cfg.DNSTimeout != 5*time.Second || cfg.ProviderTimeout != 10*time.Second {
		t.Errorf("unexpected timeouts %v %v", cfg.DNSTimeout, cfg.ProviderTimeout)
	}
	if cfg.TTL != 3600 || cfg.MXPriority != 10 {
		t.Errorf("unexpected TTL/priority %d %d", cfg.TTL, cfg.MXPriority)
	}
	if len(cfg.DKIMSelectors) != len(DefaultDKIMSelectors) {
		t.Errorf("expected default selectors, got %v", cfg.DKIMSelectors)
	}
	if cfg.HTTPListen != ":8080" {
		t.Errorf("unexpected listen address %s", cfg.HTTPListen)
	}
	if cfg.ProviderConfigured() {
		t.Error("no credentials should mean not configured")
	}
}

func TestLoadValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CLOUDFLARE_API_TOKEN", "token")
	t.Setenv("RECORD_SOURCE", "Provider")
	t.Setenv("DNS_NAMESERVERS", "9.9.9.9:53, 1.1.1.1:53")
	t.Setenv("DKIM_SELECTORS", "s1,s2")
	t.Setenv("FIX_MX_PRIORITY", "20")
	t.Setenv("TELEGRAM_ALLOWED_USERS", "1, 42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RecordSource != RecordSourceProvider {
		t.Errorf("expected provider source, got %s", cfg.RecordSource)
	}
	if len(cfg.DNSNameservers) != 2 || cfg.DNSNameservers[1] != "1.1.1.1:53" {
		t.Errorf("unexpected nameservers %v", cfg.DNSNameservers)
	}
	if len(cfg.DKIMSelectors) != 2 || cfg.MXPriority != 20 {
		t.Errorf("unexpected selectors/priority %v %d", cfg.DKIMSelectors, cfg.MXPriority)
	}
	if !cfg.IsAllowedUser(42) || cfg.IsAllowedUser(7) {
		t.Errorf("unexpected allow list %v", cfg.AllowedUsers)
	}
	if !cfg.UseAPIToken() {
		t.Error("expected API token auth")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "DNS_TIMEOUT", "soon"},
		{"bad ttl", "FIX_TTL", "hour"},
		{"priority range", "FIX_MX_PRIORITY", "70000"},
		{"unknown source", "RECORD_SOURCE", "zonefile"},
		{"bad user", "TELEGRAM_ALLOWED_USERS", "alice"},
		{"key without email", "CLOUDFLARE_API_KEY", "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("CLOUDFLARE_API_TOKEN", "")
			t.Setenv("CLOUDFLARE_EMAIL", "")
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("FIX_DMARC_RUA", "")
	os.Unsetenv("FIX_DMARC_RUA")
	wd, _ := os.Getwd()
	if err := os.WriteFile(filepath.Join(wd, ".env"), []byte("FIX_DMARC_RUA=dmarc@example.test\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DMARCReportAddress != "dmarc@example.test" {
		t.Errorf("expected address from .env, got %q", cfg.DMARCReportAddress)
	}
	os.Unsetenv("FIX_DMARC_RUA")
}
