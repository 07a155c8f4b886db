package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"maildns/external_resource/cloudflare"
	"maildns/internal/domain"
	"maildns/internal/mailauth"
)

// dnsRepository implements ProviderRepository using Cloudflare client
type dnsRepository struct {
	client cloudflare.Client
	zones  ZoneRepository
}

// NewDNSRepository creates a new provider-backed DNS repository
func NewDNSRepository(client cloudflare.Client, zones ZoneRepository) ProviderRepository {
	return &dnsRepository{
		client: client,
		zones:  zones,
	}
}

// Resolve reads the records the provider currently holds for name
func (r *dnsRepository) Resolve(ctx context.Context, name string, recordType domain.RecordType) ([]domain.RawRecord, error) {
	zone, err := r.zones.FindZone(ctx, name)
	if err != nil {
		return nil, err
	}

	records, err := r.list(ctx, zone.ID, name, recordType)
	if err != nil {
		return nil, err
	}

	result := make([]domain.RawRecord, len(records))
	for i, rec := range records {
		result[i] = mapToRawRecord(rec)
	}
	return result, nil
}

// checkRecordType rejects types the planner never writes
func checkRecordType(t domain.RecordType) error {
	if !domain.IsValidRecordType(string(t)) {
		return fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidRecord, t)
	}
	return nil
}

// CreateRecord creates a new DNS record unless an identical one exists
func (r *dnsRepository) CreateRecord(ctx context.Context, record domain.RawRecord) error {
	if err := checkRecordType(record.Type); err != nil {
		return err
	}
	zone, err := r.zones.FindZone(ctx, record.Name)
	if err != nil {
		return err
	}

	existing, err := r.list(ctx, zone.ID, record.Name, record.Type)
	if err != nil {
		return err
	}
	if match := findMatching(existing, record); match != nil {
		log.Printf("[CreateRecord] SKIP: %s %s already present (id=%s)", record.Type, record.Name, match.ID)
		return nil
	}

	_, err = r.client.CreateDNSRecord(ctx, zone.ID, toInput(record))
	if err != nil {
		return mapProviderError("create", err)
	}
	return nil
}

// UpdateRecord updates the record matching existing to the desired value
func (r *dnsRepository) UpdateRecord(ctx context.Context, existing, desired domain.RawRecord) error {
	if err := checkRecordType(desired.Type); err != nil {
		return err
	}
	zone, err := r.zones.FindZone(ctx, existing.Name)
	if err != nil {
		return err
	}

	records, err := r.list(ctx, zone.ID, existing.Name, existing.Type)
	if err != nil {
		return err
	}
	match := findMatching(records, existing)
	if match == nil {
		if findMatching(records, desired) != nil {
			// already applied
			return nil
		}
		return &domain.ProviderAPIError{Op: "update", Err: fmt.Errorf("%w: %s %s", domain.ErrRecordNotFound, existing.Type, existing.Name)}
	}

	input := toInput(desired)
	if input.TTL == 0 {
		input.TTL = match.TTL
	}
	if input.Priority == nil {
		input.Priority = match.Priority
	}

	_, err = r.client.UpdateDNSRecord(ctx, zone.ID, match.ID, input)
	if err != nil {
		return mapProviderError("update", err)
	}
	return nil
}

// DeleteRecord deletes the record matching existing. Deleting a record that is already gone is a no-op.
func (r *dnsRepository) DeleteRecord(ctx context.Context, existing domain.RawRecord) error {
	zone, err := r.zones.FindZone(ctx, existing.Name)
	if err != nil {
		return err
	}

	records, err := r.list(ctx, zone.ID, existing.Name, existing.Type)
	if err != nil {
		return err
	}
	match := findMatching(records, existing)
	if match == nil {
		log.Printf("[DeleteRecord] SKIP: %s %s not present", existing.Type, existing.Name)
		return nil
	}

	if err := r.client.DeleteDNSRecord(ctx, zone.ID, match.ID); err != nil {
		return mapProviderError("delete", err)
	}
	return nil
}

func (r *dnsRepository) list(ctx context.Context, zoneID, name string, recordType domain.RecordType) ([]cloudflare.DNSRecord, error) {
	filter := cloudflare.DNSRecordFilter{
		Name: name,
		Type: string(recordType),
	}

	records, err := r.client.ListDNSRecords(ctx, zoneID, filter)
	if err != nil {
		return nil, mapProviderError("list", err)
	}
	return records, nil
}

// findMatching returns the provider record with the same type, name and value
func findMatching(records []cloudflare.DNSRecord, want domain.RawRecord) *cloudflare.DNSRecord {
	for i := range records {
		got := mapToRawRecord(records[i])
		if SameRecord(got, want) {
			return &records[i]
		}
	}
	return nil
}

// SameRecord compares two records ignoring TTL, name case and quoting of TXT values
func SameRecord(a, b domain.RawRecord) bool {
	if a.Type != b.Type || domain.TrimFQDN(a.Name) != domain.TrimFQDN(b.Name) {
		return false
	}
	switch a.Type {
	case domain.RecordTypeTXT:
		return mailauth.UnquoteTXT(a.Value) == mailauth.UnquoteTXT(b.Value)
	case domain.RecordTypeMX, domain.RecordTypeCNAME:
		return domain.TrimFQDN(a.Value) == domain.TrimFQDN(b.Value)
	}
	return a.Value == b.Value
}

func toInput(record domain.RawRecord) cloudflare.DNSRecordInput {
	return cloudflare.DNSRecordInput{
		Name:     record.Name,
		Type:     string(record.Type),
		Content:  record.Value,
		TTL:      record.TTL,
		Priority: record.Priority,
	}
}

// mapToRawRecord maps external resource record to domain record
func mapToRawRecord(r cloudflare.DNSRecord) domain.RawRecord {
	value := r.Content
	if r.Type == string(domain.RecordTypeTXT) {
		value = mailauth.UnquoteTXT(value)
	}
	return domain.RawRecord{
		Type:     domain.RecordType(r.Type),
		Name:     r.Name,
		Value:    value,
		Priority: r.Priority,
		TTL:      r.TTL,
	}
}

// mapProviderError translates client errors into domain errors
func mapProviderError(op string, err error) error {
	switch {
	case errors.Is(err, cloudflare.ErrNotConfigured):
		return domain.ErrNotConfigured
	case errors.Is(err, cloudflare.ErrUnauthorized):
		return fmt.Errorf("%w: %v", domain.ErrProviderAuth, err)
	case errors.Is(err, cloudflare.ErrZoneNotFound):
		return &domain.ProviderAPIError{Op: op, Err: fmt.Errorf("%w: %v", domain.ErrZoneNotFound, err)}
	}
	return &domain.ProviderAPIError{Op: op, Err: err}
}
