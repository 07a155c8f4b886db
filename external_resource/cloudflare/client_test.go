package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const resultInfo = `"result_info":{"page":1,"per_page":100,"count":1,"total_count":1,"total_pages":1}`

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIBase: srv.URL, APIToken: "test-token"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientNotConfigured(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewClient(Config{APIKey: "key"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without email, got %v", err)
	}
}

func TestFindZoneWalksUp(t *testing.T) {
	var asked []string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		name := r.URL.Query().Get("name")
		asked = append(asked, name)

		w.Header().Set("Content-Type", "application/json")
		if name == "example.com" {
			fmt.Fprintf(w, `{"success":true,"errors":[],"messages":[],"result":[{"id":"zone-1","name":"example.com"}],%s}`, resultInfo)
			return
		}
		fmt.Fprint(w, `{"success":true,"errors":[],"messages":[],"result":[],"result_info":{"page":1,"per_page":100,"count":0,"total_count":0,"total_pages":0}}`)
	})

	zone, err := client.FindZone(context.Background(), "mail.example.com")
	if err != nil {
		t.Fatalf("FindZone failed: %v", err)
	}
	if zone.ID != "zone-1" || zone.Name != "example.com" {
		t.Errorf("unexpected zone %+v", zone)
	}
	if len(asked) != 2 || asked[0] != "mail.example.com" {
		t.Errorf("expected lookups for mail.example.com then example.com, got %v", asked)
	}
}

func TestFindZoneNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"errors":[],"messages":[],"result":[],"result_info":{"page":1,"per_page":100,"count":0,"total_count":0,"total_pages":0}}`)
	})

	if _, err := client.FindZone(context.Background(), "example.org"); !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"success":false,"errors":[{"code":9109,"message":"Unauthorized to access requested resource"}],"messages":[],"result":null}`)
	})

	_, err := client.ListDNSRecords(context.Background(), "zone-1", DNSRecordFilter{Name: "example.com", Type: "TXT"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListDNSRecords(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-1/dns_records" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "MX" {
			t.Errorf("expected type filter, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"errors":[],"messages":[],"result":[{"id":"rec-1","zone_id":"zone-1","name":"example.com","type":"MX","content":"mx.example.com","priority":10,"ttl":3600}],%s}`, resultInfo)
	})

	records, err := client.ListDNSRecords(context.Background(), "zone-1", DNSRecordFilter{Name: "example.com", Type: "MX"})
	if err != nil {
		t.Fatalf("ListDNSRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Priority == nil || *records[0].Priority != 10 {
		t.Errorf("expected priority 10, got %v", records[0].Priority)
	}
	if records[0].Content != "mx.example.com" {
		t.Errorf("unexpected content %q", records[0].Content)
	}
}
