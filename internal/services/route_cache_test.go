package services

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/domain"
	"testing"
)

func TestRouteCacheReusesUntilCourierMoves(t *testing.T) {
	ctx := context.Background()
	m := newMockProvider()
	overlays := NewOverlayRegistry(m, nil)
	c := NewRouteCache(m, overlays)

	origin := domain.Coordinates{Lat: 40.41, Lng: -3.70}
	dest := domain.Coordinates{Lat: 40.42, Lng: -3.69}

	first, err := c.Ensure(ctx, "c1", "o1", origin, dest)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.DistanceMeters == 0 || first.DistanceText == "" || len(first.Geometry) != 2 {
		t.Fatalf("incomplete entry: %+v", first)
	}

	if _, err := c.Ensure(ctx, "c1", "o1", origin, dest); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if m.RouteCalls() != 1 {
		t.Fatalf("route calls = %d, want 1", m.RouteCalls())
	}

	moved := domain.Coordinates{Lat: 40.415, Lng: -3.70}
	second, err := c.Ensure(ctx, "c1", "o1", moved, dest)
	if err != nil {
		t.Fatalf("ensure moved: %v", err)
	}
	if m.RouteCalls() != 2 || !second.Origin.Equal(moved) {
		t.Fatalf("moved courier should trigger a new route, calls=%d", m.RouteCalls())
	}

	key := domain.RouteKey{CourierID: "c1", OrderID: "o1"}
	live := overlays.LiveKeys()
	if !live.Has(domain.RouteOverlayKey(key)) || !live.Has(domain.DestinationKey(key)) {
		t.Fatalf("route and destination overlays expected, got %v", live.Sorted())
	}
}

func TestRouteCacheKeepsPreviousOnFailure(t *testing.T) {
	ctx := context.Background()
	m := newMockProvider()
	overlays := NewOverlayRegistry(m, nil)
	c := NewRouteCache(m, overlays)

	origin := domain.Coordinates{Lat: 40.41, Lng: -3.70}
	dest := domain.Coordinates{Lat: 40.42, Lng: -3.69}

	prev, err := c.Ensure(ctx, "c1", "o1", origin, dest)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	m.FailRoutes(1)
	got, err := c.Ensure(ctx, "c1", "o1", domain.Coordinates{Lat: 40.40, Lng: -3.70}, dest)
	if !errors.Is(err, ErrRoute) {
		t.Fatalf("err = %v, want ErrRoute", err)
	}
	if !got.Origin.Equal(prev.Origin) {
		t.Fatalf("expected previous entry back, got origin %+v", got.Origin)
	}

	cached, ok := c.Get(domain.RouteKey{CourierID: "c1", OrderID: "o1"})
	if !ok || !cached.Origin.Equal(origin) {
		t.Fatalf("failed computation must not overwrite the entry")
	}
	if countKind(m, "polyline") != 1 {
		t.Fatalf("previous route line should stay on the map")
	}
}

func TestRouteCacheFailureWithoutPrevious(t *testing.T) {
	m := newMockProvider()
	c := NewRouteCache(m, NewOverlayRegistry(m, nil))
	m.FailRoutes(1)

	got, err := c.Ensure(context.Background(), "c1", "o1", domain.Coordinates{}, domain.Coordinates{Lat: 1})
	if !errors.Is(err, ErrRoute) {
		t.Fatalf("err = %v, want ErrRoute", err)
	}
	if got.Key != (domain.RouteKey{}) || c.Len() != 0 {
		t.Fatalf("no entry should exist after a first failure")
	}
}

func TestRouteCachePrune(t *testing.T) {
	ctx := context.Background()
	m := newMockProvider()
	c := NewRouteCache(m, nil)

	for _, o := range []string{"o1", "o2"} {
		if _, err := c.Ensure(ctx, "c1", o, domain.Coordinates{}, domain.Coordinates{Lat: 1}); err != nil {
			t.Fatalf("ensure %s: %v", o, err)
		}
	}

	keep := map[domain.RouteKey]struct{}{{CourierID: "c1", OrderID: "o2"}: {}}
	if n := c.Prune(keep); n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if _, ok := c.Get(domain.RouteKey{CourierID: "c1", OrderID: "o1"}); ok {
		t.Fatalf("o1 should be gone")
	}
}

func TestRouteCacheDropsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newMockProvider()
	c := NewRouteCache(m, nil)
	if _, err := c.Ensure(ctx, "c1", "o1", domain.Coordinates{}, domain.Coordinates{Lat: 1}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	if c.Len() != 0 {
		t.Fatalf("nothing should be cached after cancel")
	}
}
