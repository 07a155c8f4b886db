package cloudflare

import (
	"context"
	"errors"
	"time"
)

// Client defines the interface for Cloudflare API operations
type Client interface {
	// Zone operations
	FindZone(ctx context.Context, name string) (*Zone, error)

	// DNS Record operations
	ListDNSRecords(ctx context.Context, zoneID string, filter DNSRecordFilter) ([]DNSRecord, error)
	CreateDNSRecord(ctx context.Context, zoneID string, input DNSRecordInput) (*DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, zoneID, recordID string, input DNSRecordInput) (*DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error
}

// Config holds the credentials and endpoint of the Cloudflare API.
// Either APIToken or both APIKey and Email must be set.
type Config struct {
	APIBase  string
	APIToken string
	APIKey   string
	Email    string
	Timeout  time.Duration
}

// Configured reports whether credentials are present
func (c Config) Configured() bool {
	return c.APIToken != "" || (c.APIKey != "" && c.Email != "")
}

// Zone represents a Cloudflare zone (domain)
type Zone struct {
	ID   string
	Name string
}

// DNSRecord represents a DNS record from Cloudflare
type DNSRecord struct {
	ID       string
	ZoneID   string
	ZoneName string
	Name     string
	Type     string
	Content  string
	TTL      int
	Proxied  bool
	Priority *uint16
}

// DNSRecordFilter represents filters for listing DNS records
type DNSRecordFilter struct {
	Name string
	Type string
}

// DNSRecordInput represents input for creating or updating a DNS record
type DNSRecordInput struct {
	Name     string
	Type     string
	Content  string
	TTL      int
	Priority *uint16
}

// Client errors
var (
	ErrNotConfigured = errors.New("cloudflare: no credentials configured")
	ErrUnauthorized  = errors.New("cloudflare: credentials rejected")
	ErrZoneNotFound  = errors.New("cloudflare: no zone manages this name")
)
