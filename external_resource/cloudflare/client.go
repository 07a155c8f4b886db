package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

// cloudflareClient implements the Client interface using cloudflare-go SDK
type cloudflareClient struct {
	api *cloudflare.API
}

// NewClient creates a Cloudflare client from config. API token auth is
// preferred over the legacy key and email pair.
func NewClient(config Config) (Client, error) {
	if !config.Configured() {
		return nil, ErrNotConfigured
	}

	var opts []cloudflare.Option
	if config.APIBase != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimSuffix(config.APIBase, "/")))
	}
	if config.Timeout > 0 {
		opts = append(opts, cloudflare.HTTPClient(&http.Client{Timeout: config.Timeout}))
	}

	var (
		api *cloudflare.API
		err error
	)
	if config.APIToken != "" {
		api, err = cloudflare.NewWithAPIToken(config.APIToken, opts...)
	} else {
		api, err = cloudflare.New(config.APIKey, config.Email, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudflare client: %w", err)
	}

	return &cloudflareClient{
		api: api,
	}, nil
}

// FindZone returns the zone managing name, walking up one label at a time
// (mail.example.com, then example.com).
func (c *cloudflareClient) FindZone(ctx context.Context, name string) (*Zone, error) {
	log.Printf("[CloudflareClient] FindZone START name=%s", name)

	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	for i := 0; i+1 < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")

		resp, err := c.api.ListZonesContext(ctx, cloudflare.WithZoneFilters(candidate, "", ""))
		if err != nil {
			log.Printf("[CloudflareClient] FindZone ERROR: %v", err)
			return nil, fmt.Errorf("failed to look up zone %s: %w", candidate, normalizeError(err))
		}
		for _, z := range resp.Result {
			if strings.EqualFold(z.Name, candidate) {
				log.Printf("[CloudflareClient] FindZone SUCCESS: zoneID=%s zone=%s", z.ID, z.Name)
				return &Zone{ID: z.ID, Name: z.Name}, nil
			}
		}
	}

	log.Printf("[CloudflareClient] FindZone ERROR: no zone for %s", name)
	return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, name)
}

// ListDNSRecords returns all DNS records for a zone
func (c *cloudflareClient) ListDNSRecords(ctx context.Context, zoneID string, filter DNSRecordFilter) ([]DNSRecord, error) {
	log.Printf("[CloudflareClient] ListDNSRecords START zoneID=%s name=%s type=%s", zoneID, filter.Name, filter.Type)
	listParams := cloudflare.ListDNSRecordsParams{}

	if filter.Name != "" {
		listParams.Name = filter.Name
	}
	if filter.Type != "" {
		listParams.Type = filter.Type
	}

	records, _, err := c.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), listParams)
	if err != nil {
		log.Printf("[CloudflareClient] ListDNSRecords ERROR: %v", err)
		return nil, fmt.Errorf("failed to list dns records: %w", normalizeError(err))
	}
	log.Printf("[CloudflareClient] ListDNSRecords SUCCESS: found %d records", len(records))

	result := make([]DNSRecord, len(records))
	for i, r := range records {
		result[i] = mapCloudflareRecord(r)
	}

	return result, nil
}

// CreateDNSRecord creates a new DNS record
func (c *cloudflareClient) CreateDNSRecord(ctx context.Context, zoneID string, input DNSRecordInput) (*DNSRecord, error) {
	log.Printf("[CloudflareClient] CreateDNSRecord START zoneID=%s %s %s", zoneID, input.Type, input.Name)
	createParams := cloudflare.CreateDNSRecordParams{
		Name:    input.Name,
		Type:    input.Type,
		Content: input.Content,
		TTL:     input.TTL,
	}
	if input.Priority != nil {
		createParams.Priority = input.Priority
	}

	record, err := c.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), createParams)
	if err != nil {
		log.Printf("[CloudflareClient] CreateDNSRecord ERROR: %v", err)
		return nil, fmt.Errorf("failed to create dns record: %w", normalizeError(err))
	}
	log.Printf("[CloudflareClient] CreateDNSRecord SUCCESS: id=%s", record.ID)

	result := mapCloudflareRecord(record)
	return &result, nil
}

// UpdateDNSRecord updates an existing DNS record
func (c *cloudflareClient) UpdateDNSRecord(ctx context.Context, zoneID, recordID string, input DNSRecordInput) (*DNSRecord, error) {
	log.Printf("[CloudflareClient] UpdateDNSRecord START zoneID=%s id=%s", zoneID, recordID)
	updateParams := cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Name:    input.Name,
		Type:    input.Type,
		Content: input.Content,
		TTL:     input.TTL,
	}
	if input.Priority != nil {
		updateParams.Priority = input.Priority
	}

	record, err := c.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), updateParams)
	if err != nil {
		log.Printf("[CloudflareClient] UpdateDNSRecord ERROR: %v", err)
		return nil, fmt.Errorf("failed to update dns record %s: %w", recordID, normalizeError(err))
	}
	log.Printf("[CloudflareClient] UpdateDNSRecord SUCCESS: id=%s", recordID)

	result := mapCloudflareRecord(record)
	return &result, nil
}

// DeleteDNSRecord deletes a DNS record
func (c *cloudflareClient) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	log.Printf("[CloudflareClient] DeleteDNSRecord START zoneID=%s id=%s", zoneID, recordID)
	err := c.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID)
	if err != nil {
		log.Printf("[CloudflareClient] DeleteDNSRecord ERROR: %v", err)
		return fmt.Errorf("failed to delete dns record %s: %w", recordID, normalizeError(err))
	}
	log.Printf("[CloudflareClient] DeleteDNSRecord SUCCESS: id=%s", recordID)

	return nil
}

// normalizeError maps 401/403 responses to ErrUnauthorized
func normalizeError(err error) error {
	var authnErr *cloudflare.AuthenticationError
	var authzErr *cloudflare.AuthorizationError
	if errors.As(err, &authnErr) || errors.As(err, &authzErr) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

// mapCloudflareRecord maps cloudflare-go DNSRecord to our DNSRecord
func mapCloudflareRecord(r cloudflare.DNSRecord) DNSRecord {
	proxied := false
	if r.Proxied != nil {
		proxied = *r.Proxied
	}
	return DNSRecord{
		ID:       r.ID,
		ZoneID:   r.ZoneID,
		ZoneName: r.ZoneName,
		Name:     r.Name,
		Type:     r.Type,
		Content:  r.Content,
		TTL:      r.TTL,
		Proxied:  proxied,
		Priority: r.Priority,
	}
}
