package bootstrap

import (
	"testing"
	"time"

	"maildns/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RecordSource:       config.RecordSourceDNS,
		DNSNameservers:     []string{"127.0.0.1:1"},
		DNSTimeout:         time.Second,
		ProviderTimeout:    time.Second,
		DKIMSelectors:      []string{"default"},
		DMARCReportAddress: "dmarc@example.test",
		MXPriority:         10,
		TTL:                3600,
		DataDir:            t.TempDir(),
	}
}

func TestNewWithoutProvider(t *testing.T) {
	app, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if app.Provider {
		t.Error("no credentials means no provider")
	}
	if app.Usecase == nil || app.Storage == nil {
		t.Fatal("usecase and storage must be wired")
	}

	settings, err := app.Storage.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.DMARCReportAddress != "dmarc@example.test" || settings.TTL != 3600 {
		t.Errorf("settings not seeded from config: %+v", settings)
	}
}

func TestNewWithProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.CloudflareAPIToken = "token"
	cfg.CloudflareAPIBase = "http://127.0.0.1:1/client/v4"
	cfg.RecordSource = config.RecordSourceProvider

	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !app.Provider {
		t.Error("expected provider to be configured")
	}
}

func TestProviderConfigAuthChoice(t *testing.T) {
	cfg := testConfig(t)
	cfg.CloudflareAPIToken = "token"
	cfg.CloudflareAPIKey = "key"
	cfg.CloudflareEmail = "ops@example.test"

	pc := ProviderConfig(cfg)
	if pc.APIToken != "token" || pc.APIKey != "" || pc.Email != "" {
		t.Errorf("expected token auth only, got %+v", pc)
	}

	cfg.CloudflareAPIToken = ""
	pc = ProviderConfig(cfg)
	if pc.APIToken != "" || pc.APIKey != "key" || pc.Email != "ops@example.test" {
		t.Errorf("expected key and email auth, got %+v", pc)
	}
	if pc.Timeout != time.Second {
		t.Errorf("expected provider timeout, got %v", pc.Timeout)
	}
}

func TestNewProviderSourceNeedsCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.RecordSource = config.RecordSourceProvider

	if _, err := New(cfg); err == nil {
		t.Error("expected error for provider source without credentials")
	}
}
