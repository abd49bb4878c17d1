package services

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RouteCache memoizes courier -> order routes.
//
// A route is recomputed only when the courier moved or the destination
// changed since the last successful computation. A failed computation keeps
// the previous entry on screen.
type RouteCache struct {
	router   ports.Router
	overlays *OverlayRegistry
	now      func() time.Time

	mu      sync.Mutex
	entries map[domain.RouteKey]domain.RouteEntry
	group   singleflight.Group
}

func NewRouteCache(router ports.Router, overlays *OverlayRegistry) *RouteCache {
	return &RouteCache{
		router:   router,
		overlays: overlays,
		now:      time.Now,
		entries:  make(map[domain.RouteKey]domain.RouteEntry),
	}
}

func (c *RouteCache) Get(key domain.RouteKey) (domain.RouteEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *RouteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Ensure returns an up-to-date route for the pair and renders it.
// On failure it returns the previous entry (zero when none) and an error
// wrapping ErrRoute.
func (c *RouteCache) Ensure(
	ctx context.Context,
	courierID string,
	orderID string,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (domain.RouteEntry, error) {
	key := domain.RouteKey{CourierID: courierID, OrderID: orderID}

	prev, hasPrev := c.Get(key)
	if hasPrev && prev.Origin.Equal(origin) && prev.Destination.Equal(destination) {
		c.render(ctx, prev)
		return prev, nil
	}

	// The flight key includes the inputs so a moved courier never receives
	// a route computed from its old position.
	flight := fmt.Sprintf("%s@%v,%v>%v,%v", key, origin.Lat, origin.Lng, destination.Lat, destination.Lng)

	v, err, _ := c.group.Do(flight, func() (any, error) {
		res, err := c.router.ComputeRoute(ctx, origin, destination)
		if err != nil {
			return nil, err
		}

		// Late answers after teardown are dropped.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := domain.RouteEntry{
			Key:             key,
			Origin:          origin,
			Destination:     destination,
			DistanceMeters:  res.DistanceMeters,
			DurationSeconds: res.DurationSeconds,
			DistanceText:    domain.FormatDistance(res.DistanceMeters),
			DurationText:    domain.FormatDuration(res.DurationSeconds),
			Geometry:        res.Polyline,
			ComputedAt:      c.now(),
		}

		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()

		return entry, nil
	})
	if err != nil {
		rerr := &entityError{kind: ErrRoute, subject: "route=" + key.String(), err: err}
		if ctx.Err() == nil {
			log.Printf("route failed, keeping previous: route=%s had_previous=%t err=%v", key, hasPrev, err)
		}
		if hasPrev {
			c.render(ctx, prev)
		}
		return prev, rerr
	}

	entry := v.(domain.RouteEntry)
	c.render(ctx, entry)
	return entry, nil
}

// Prune discards entries whose pair is not in keep.
func (c *RouteCache) Prune(keep map[domain.RouteKey]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if _, ok := keep[k]; !ok {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *RouteCache) render(ctx context.Context, entry domain.RouteEntry) {
	if c.overlays == nil {
		return
	}
	c.overlays.UpsertDestination(ctx, entry.Key, entry.Destination)
	c.overlays.UpsertRoute(ctx, entry)
}
