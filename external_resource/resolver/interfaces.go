package resolver

import (
	"context"
	"errors"
	"time"
)

// Client defines the interface for public DNS lookups
type Client interface {
	// Lookup queries one name for one record type (TXT, MX, A or CNAME).
	// A NOERROR answer without matching records returns an empty slice and no error.
	Lookup(ctx context.Context, name, recordType string) ([]Record, error)
}

// Record is one resource record from an answer section
type Record struct {
	Type     string
	Name     string
	Value    string
	Priority *uint16
	TTL      int
}

// Config contains configuration for the resolver
type Config struct {
	// Nameservers is a list of DNS servers to query (e.g., "8.8.8.8:53").
	// If empty, servers from /etc/resolv.conf are used, falling back to
	// public DNS (8.8.8.8, 1.1.1.1).
	Nameservers []string

	// Timeout bounds a single exchange with one server. Default is 5 seconds.
	Timeout time.Duration

	// Retries is the number of extra passes over the server list. Default is 1.
	Retries int
}

// Resolver errors
var (
	ErrNotFound    = errors.New("dns: name not found")
	ErrServFail    = errors.New("dns: server failure")
	ErrRefused     = errors.New("dns: query refused")
	ErrTimeout     = errors.New("dns: query timed out")
	ErrUnreachable = errors.New("dns: no server reachable")
	ErrBadType     = errors.New("dns: unsupported record type")
)
