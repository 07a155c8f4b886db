package repository

import (
	"context"
	"errors"
	"fmt"

	"maildns/external_resource/resolver"
	"maildns/internal/domain"
)

// resolverSource implements RecordSource against public DNS
type resolverSource struct {
	client resolver.Client
}

// NewResolverSource creates a RecordSource backed by a DNS resolver
func NewResolverSource(client resolver.Client) RecordSource {
	return &resolverSource{
		client: client,
	}
}

// Resolve maps resolver answers and errors into domain terms. NXDOMAIN is an
// empty answer, not an error.
func (s *resolverSource) Resolve(ctx context.Context, name string, recordType domain.RecordType) ([]domain.RawRecord, error) {
	records, err := s.client.Lookup(ctx, name, string(recordType))
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNotFound):
			return nil, nil
		case errors.Is(err, resolver.ErrTimeout):
			return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrLookupTimeout, recordType, name, err)
		case errors.Is(err, resolver.ErrServFail), errors.Is(err, resolver.ErrRefused):
			return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrLookupFailed, recordType, name, err)
		case errors.Is(err, resolver.ErrUnreachable):
			return nil, &domain.ResolutionError{Name: name, Err: err}
		}
		return nil, err
	}

	result := make([]domain.RawRecord, len(records))
	for i, rec := range records {
		result[i] = domain.RawRecord{
			Type:     domain.RecordType(rec.Type),
			Name:     rec.Name,
			Value:    rec.Value,
			Priority: rec.Priority,
			TTL:      rec.TTL,
		}
	}
	return result, nil
}
