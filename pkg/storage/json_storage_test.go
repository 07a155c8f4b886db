package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJSONStorageDefaults(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStorage(dir, Settings{MXTarget: "mx.example.net", TTL: 3600, DKIMSelectors: []string{"default"}})

	got, err := s.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.MXTarget != "mx.example.net" || got.TTL != 3600 || len(got.DKIMSelectors) != 1 {
		t.Errorf("expected defaults, got %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); !os.IsNotExist(err) {
		t.Error("reading settings must not create the file")
	}
}

func TestJSONStorageUpdateSettings(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStorage(dir, Settings{TTL: 3600})

	updated, err := s.UpdateSettings(func(settings *Settings) {
		settings.DMARCReportAddress = "dmarc@example.test"
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if updated.DMARCReportAddress != "dmarc@example.test" || updated.TTL != 3600 {
		t.Errorf("unexpected settings %+v", updated)
	}

	// a fresh storage over the same directory sees the saved value
	reopened := NewJSONStorage(dir, Settings{TTL: 300})
	got, err := reopened.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.DMARCReportAddress != "dmarc@example.test" {
		t.Errorf("expected persisted address, got %+v", got)
	}
	if got.TTL != 3600 {
		t.Errorf("expected persisted TTL 3600, got %d", got.TTL)
	}
}

func TestJSONStorageClearedValueStaysCleared(t *testing.T) {
	dir := t.TempDir()
	defaults := Settings{SPFInclude: "_spf.example.net", MXTarget: "mx.example.net", TTL: 3600, DKIMSelectors: []string{"default"}}
	s := NewJSONStorage(dir, defaults)

	if _, err := s.UpdateSettings(func(settings *Settings) {
		settings.SPFInclude = ""
		settings.MXTarget = ""
	}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	got, err := NewJSONStorage(dir, defaults).GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.SPFInclude != "" || got.MXTarget != "" {
		t.Errorf("cleared values came back from defaults: %+v", got)
	}
	if got.TTL != 3600 || len(got.DKIMSelectors) != 1 {
		t.Errorf("expected TTL and selectors kept, got %+v", got)
	}
}

func TestJSONStorageMissingKeysUseDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"settings":{"dmarc_rua":"d@example.test"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	defaults := Settings{MXTarget: "mx.example.net", TTL: 3600, DKIMSelectors: []string{"default", "google"}}
	got, err := NewJSONStorage(dir, defaults).GetSettings()
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.DMARCReportAddress != "d@example.test" || got.MXTarget != "mx.example.net" || got.TTL != 3600 {
		t.Errorf("unexpected settings %+v", got)
	}
	if len(defaults.DKIMSelectors) != 2 || defaults.DKIMSelectors[0] != "default" {
		t.Errorf("defaults must not be modified, got %v", defaults.DKIMSelectors)
	}
}

func TestJSONStorageBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewJSONStorage(dir, Settings{})
	if _, err := s.GetSettings(); err == nil {
		t.Error("expected parse error")
	}
}
