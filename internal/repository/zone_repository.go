package repository

import (
	"context"
	"log"

	"maildns/external_resource/cloudflare"
	"maildns/internal/domain"
)

// zoneRepository implements ZoneRepository using Cloudflare client
type zoneRepository struct {
	client cloudflare.Client
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(client cloudflare.Client) ZoneRepository {
	return &zoneRepository{
		client: client,
	}
}

// FindZone returns the zone managing name
func (r *zoneRepository) FindZone(ctx context.Context, name string) (*domain.Zone, error) {
	log.Printf("[FindZone] START name=%s", name)
	zone, err := r.client.FindZone(ctx, name)
	if err != nil {
		log.Printf("[FindZone] ERROR: %v", err)
		return nil, mapProviderError("find zone", err)
	}
	log.Printf("[FindZone] SUCCESS: ID=%s, Name=%s", zone.ID, zone.Name)

	return &domain.Zone{
		ID:   zone.ID,
		Name: zone.Name,
	}, nil
}
