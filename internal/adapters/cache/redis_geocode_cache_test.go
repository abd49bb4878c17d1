package cache

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisGeocodeCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisGeocodeCache(client)

	err := store.PutMany(ctx, map[string]domain.Coordinates{
		"1 Main St":  {Lat: 33.45, Lng: -112.07},
		"1 Main St ": {Lat: 1, Lng: 1},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	// Existing entries are immutable.
	if err := store.PutMany(ctx, map[string]domain.Coordinates{"1 Main St": {Lat: 9, Lng: 9}}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := store.GetMany(ctx, []string{"1 Main St", "1 Main St", "missing", ""})
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(got), got)
	}
	if c := got["1 Main St"]; c.Lat != 33.45 || c.Lng != -112.07 {
		t.Errorf("coords = %+v", c)
	}

	got, err = store.GetMany(ctx, []string{"1 Main St "})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c, ok := got["1 Main St "]; !ok || c.Lat != 1 {
		t.Errorf("addresses must not be normalized: %+v", got)
	}
}

func TestRedisGeocodeCacheSkipsCorruptValues(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mr.HSet(defaultGeocodeHash, "bad", "not json")

	got, err := NewRedisGeocodeCache(client).GetMany(context.Background(), []string{"bad"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("corrupt entry should be skipped, got %+v", got)
	}
}
