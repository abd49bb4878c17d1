package services

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/adapters/mapprovider"
	"fleet-tracking-service/internal/domain"
	"sync"
	"time"
)

// fakeBackend is an in-memory FleetBackend whose contents tests edit
// between cycles.
type fakeBackend struct {
	mu              sync.Mutex
	couriers        []domain.Courier
	orders          []domain.DeliveryOrder
	assignments     map[string][]domain.Assignment
	couriersErr     error
	ordersErr       error
	assignmentsErrs map[string]error
	calls           int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		assignments:     make(map[string][]domain.Assignment),
		assignmentsErrs: make(map[string]error),
	}
}

func (b *fakeBackend) ListActiveCouriers(ctx context.Context) ([]domain.Courier, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.couriersErr != nil {
		return nil, b.couriersErr
	}
	return append([]domain.Courier(nil), b.couriers...), nil
}

func (b *fakeBackend) ListOrders(ctx context.Context, status domain.OrderStatus, pageSize int) ([]domain.DeliveryOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ordersErr != nil {
		return nil, b.ordersErr
	}
	var out []domain.DeliveryOrder
	for _, o := range b.orders {
		if o.Status == status && len(out) < pageSize {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *fakeBackend) ListAssignmentsForOrder(ctx context.Context, orderID string) ([]domain.Assignment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.assignmentsErrs[orderID]; err != nil {
		return nil, err
	}
	return append([]domain.Assignment(nil), b.assignments[orderID]...), nil
}

func (b *fakeBackend) setCouriers(cs ...domain.Courier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.couriers = cs
}

// assign adds a delivering order held by courierID.
func (b *fakeBackend) assign(courierID, orderID, address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, domain.DeliveryOrder{
		ID:           orderID,
		Status:       domain.OrderDelivering,
		Address:      address,
		CustomerName: "Customer " + orderID,
		Amount:       12.5,
	})
	b.assignments[orderID] = append(b.assignments[orderID], domain.Assignment{
		ID:        "a-" + orderID,
		OrderID:   orderID,
		CourierID: courierID,
		Status:    domain.AssignmentAccepted,
	})
}

func (b *fakeBackend) dropOrder(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.orders[:0]
	for _, o := range b.orders {
		if o.ID != orderID {
			kept = append(kept, o)
		}
	}
	b.orders = kept
	delete(b.assignments, orderID)
}

var (
	errBackendDown = errors.New("backend down")
	testTime       = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
)

func pos(lat, lng float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: lat, Lng: lng}
}

func courier(id string, vehicle domain.VehicleCategory, p *domain.Coordinates) domain.Courier {
	return domain.Courier{ID: id, Name: "Courier " + id, Vehicle: vehicle, Active: true, Position: p}
}

const (
	addrMain    = "1 Main St"
	addrHarbor  = "9 Harbor Rd"
	addrUnknown = "123 Unknown St"
)

func newMockProvider() *mapprovider.MockProvider {
	return mapprovider.NewMockProvider(map[string]domain.Coordinates{
		addrMain:    {Lat: 40.4168, Lng: -3.7038},
		addrHarbor:  {Lat: 40.4200, Lng: -3.6900},
		addrUnknown: {Lat: 40.4300, Lng: -3.7100},
	})
}

func countKind(m *mapprovider.MockProvider, kind mapprovider.OverlayKind) int {
	n := 0
	for _, o := range m.Overlays() {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
