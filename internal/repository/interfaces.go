package repository

import (
	"context"

	"maildns/internal/domain"
)

// RecordSource defines the read side of DNS: the records currently published for a name
type RecordSource interface {
	// Resolve returns the records of one name and type. A name without
	// records of that type returns an empty slice and no error.
	Resolve(ctx context.Context, name string, recordType domain.RecordType) ([]domain.RawRecord, error)
}

// RecordMutator defines the write side of DNS at the hosting provider
type RecordMutator interface {
	// CreateRecord adds a record. Creating a record that already exists with the same value is a no-op.
	CreateRecord(ctx context.Context, record domain.RawRecord) error

	// UpdateRecord replaces the value of the record matching existing
	UpdateRecord(ctx context.Context, existing, desired domain.RawRecord) error

	// DeleteRecord removes the record matching existing
	DeleteRecord(ctx context.Context, existing domain.RawRecord) error
}

// ProviderRepository reads and writes records at the hosting provider
type ProviderRepository interface {
	RecordSource
	RecordMutator
}

// ZoneRepository defines the interface for zone operations
type ZoneRepository interface {
	// FindZone returns the hosted zone that manages name
	FindZone(ctx context.Context, name string) (*domain.Zone, error)
}
