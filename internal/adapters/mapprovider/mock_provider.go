package mapprovider

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MockProvider is an in-memory MapProvider for tests and local runs.
// Geocoding answers from a fixed table; routes are straight lines whose
// distance is the geodesic length and whose duration assumes 10 m/s.
type MockProvider struct {
	*Canvas

	mu              sync.Mutex
	addresses       map[string]domain.Coordinates
	geocodeFailures map[string]int
	routeFailures   int
	geocodeCalls    map[string]int
	routeCalls      int

	// When set, each Geocode call signals Started and waits on Release.
	Started chan string
	Release chan struct{}
}

var _ ports.MapProvider = (*MockProvider)(nil)

func NewMockProvider(addresses map[string]domain.Coordinates) *MockProvider {
	m := &MockProvider{
		Canvas:          NewCanvas(),
		addresses:       make(map[string]domain.Coordinates, len(addresses)),
		geocodeFailures: make(map[string]int),
		geocodeCalls:    make(map[string]int),
	}
	for a, c := range addresses {
		m.addresses[a] = c
	}
	return m
}

// FailGeocode makes the next n lookups of address fail with ErrNotFound.
func (m *MockProvider) FailGeocode(address string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geocodeFailures[address] = n
}

// FailRoutes makes the next n route computations fail.
func (m *MockProvider) FailRoutes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeFailures = n
}

func (m *MockProvider) SetAddress(address string, c domain.Coordinates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[address] = c
}

func (m *MockProvider) GeocodeCalls(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geocodeCalls[address]
}

func (m *MockProvider) TotalGeocodeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.geocodeCalls {
		n += c
	}
	return n
}

func (m *MockProvider) RouteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routeCalls
}

func (m *MockProvider) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	m.mu.Lock()
	m.geocodeCalls[address]++
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- address
	}
	if m.Release != nil {
		select {
		case <-m.Release:
		case <-ctx.Done():
			return domain.Coordinates{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n := m.geocodeFailures[address]; n > 0 {
		m.geocodeFailures[address] = n - 1
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, ports.ErrNotFound)
	}

	c, ok := m.addresses[address]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, ports.ErrNotFound)
	}
	return c, nil
}

func (m *MockProvider) ComputeRoute(ctx context.Context, origin, destination domain.Coordinates) (ports.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RouteResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.routeCalls++
	if m.routeFailures > 0 {
		m.routeFailures--
		return ports.RouteResult{}, fmt.Errorf("mock route: provider error")
	}

	meters := geo.Distance(origin.Point(), destination.Point())
	return ports.RouteResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(meters / 10)),
		Polyline:        orb.LineString{origin.Point(), destination.Point()},
		Legs:            1,
	}, nil
}
