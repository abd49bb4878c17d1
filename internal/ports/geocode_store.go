package ports

import (
	"context"
	"fleet-tracking-service/internal/domain"
)

// Optional durable tier behind the in-memory geocode cache.
type GeocodeStore interface {
	// Fetch stored coordinates for the given addresses; misses are absent from the map.
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	// Store address -> coordinate mappings.
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
