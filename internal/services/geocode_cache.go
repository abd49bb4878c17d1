package services

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"
)

// GeocodeCache memoizes address -> coordinates for the life of the process.
//
// Keys are the exact address strings. Only successes are cached, so a failed
// address is retried on the next call. Concurrent lookups of one address share
// a single external request.
type GeocodeCache struct {
	geocoder ports.Geocoder
	store    ports.GeocodeStore

	mu      sync.RWMutex
	entries map[string]domain.Coordinates
	group   singleflight.Group
}

// NewGeocodeCache builds a cache in front of geocoder. store is optional.
func NewGeocodeCache(geocoder ports.Geocoder, store ports.GeocodeStore) *GeocodeCache {
	return &GeocodeCache{
		geocoder: geocoder,
		store:    store,
		entries:  make(map[string]domain.Coordinates),
	}
}

// Lookup returns a cached result without any I/O.
func (c *GeocodeCache) Lookup(address string) (domain.Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coords, ok := c.entries[address]
	return coords, ok
}

func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Resolve returns the coordinates of address, calling out at most once per
// address at a time. Errors wrap ErrGeocode.
func (c *GeocodeCache) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	if coords, ok := c.Lookup(address); ok {
		return coords, nil
	}

	if address == "" {
		return domain.Coordinates{}, &entityError{kind: ErrGeocode, subject: "empty address", err: errors.New("address must be non-empty")}
	}

	v, err, _ := c.group.Do(address, func() (any, error) {
		if coords, ok := c.Lookup(address); ok {
			return coords, nil
		}

		if coords, ok := c.fromStore(ctx, address); ok {
			c.put(address, coords)
			return coords, nil
		}

		coords, err := c.geocoder.Geocode(ctx, address)
		if err != nil {
			return nil, err
		}

		// Late answers after teardown are dropped.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.put(address, coords)

		if c.store != nil {
			if err := c.store.PutMany(ctx, map[string]domain.Coordinates{address: coords}); err != nil {
				log.Printf("geocode store write failed: address=%q err=%v", address, err)
			}
		}

		return coords, nil
	})
	if err != nil {
		return domain.Coordinates{}, &entityError{kind: ErrGeocode, subject: fmt.Sprintf("address=%q", address), err: err}
	}

	return v.(domain.Coordinates), nil
}

func (c *GeocodeCache) fromStore(ctx context.Context, address string) (domain.Coordinates, bool) {
	if c.store == nil {
		return domain.Coordinates{}, false
	}

	hits, err := c.store.GetMany(ctx, []string{address})
	if err != nil {
		log.Printf("geocode store read failed: address=%q err=%v", address, err)
		return domain.Coordinates{}, false
	}

	coords, ok := hits[address]
	return coords, ok
}

// Entries are immutable once written.
func (c *GeocodeCache) put(address string, coords domain.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[address]; !ok {
		c.entries[address] = coords
	}
}
