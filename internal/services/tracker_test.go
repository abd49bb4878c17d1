package services

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/adapters/mapprovider"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"sync"
	"testing"
	"time"
)

func mountTracker(t *testing.T, b *fakeBackend, opts Options) (*Tracker, *mapprovider.MockProvider) {
	t.Helper()
	m := newMockProvider()
	tr := NewTracker(b, opts)
	if err := tr.Mount(context.Background(), func(ctx context.Context) (ports.MapProvider, error) { return m, nil }); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(tr.Dispose)
	return tr, m
}

func TestTrackerProviderUnavailable(t *testing.T) {
	tr := NewTracker(newFakeBackend(), Options{})

	err := tr.Mount(context.Background(), func(ctx context.Context) (ports.MapProvider, error) {
		return nil, errors.New("missing api key")
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if tr.State().Status != StatusProviderUnavailable {
		t.Fatalf("status = %s", tr.State().Status)
	}
	if err := tr.Refresh(context.Background()); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("refresh err = %v, want ErrNotMounted", err)
	}
}

func TestTrackerMountRendersFirstSnapshot(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(courier("c1", domain.VehicleMoto, pos(40.41, -3.70)))
	b.assign("c1", "o1", addrMain)

	var mu sync.Mutex
	var refreshed [][]domain.Courier
	tr, m := mountTracker(t, b, Options{
		OnFleetSnapshotRefreshed: func(cs []domain.Courier) {
			mu.Lock()
			defer mu.Unlock()
			refreshed = append(refreshed, cs)
		},
	})

	st := tr.State()
	if st.Status != StatusReady || st.VisibleCouriers != 1 || st.Refreshing {
		t.Fatalf("state = %+v", st)
	}
	if len(tr.LiveKeys()) != 3 || len(m.Overlays()) != 3 {
		t.Fatalf("live keys = %v", tr.LiveKeys().Sorted())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(refreshed) != 1 || len(refreshed[0]) != 1 || refreshed[0][0].ID != "c1" {
		t.Fatalf("refresh callbacks = %+v", refreshed)
	}
}

func TestTrackerFetchErrorKeepsOverlays(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(courier("c1", domain.VehicleMoto, pos(40.41, -3.70)))
	tr, m := mountTracker(t, b, Options{})

	b.mu.Lock()
	b.ordersErr = errBackendDown
	b.mu.Unlock()

	if err := tr.Refresh(context.Background()); !errors.Is(err, ErrFetch) {
		t.Fatalf("refresh err = %v, want ErrFetch", err)
	}
	if len(m.Overlays()) != 1 {
		t.Fatalf("stale overlays should stay after a failed fetch")
	}
	if tr.State().LastError == "" {
		t.Fatalf("last error should be reported")
	}

	b.mu.Lock()
	b.ordersErr = nil
	b.mu.Unlock()
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh after recovery: %v", err)
	}
	if tr.State().LastError != "" {
		t.Fatalf("error should clear after a good cycle")
	}
}

func TestTrackerFiltersAndEmptyState(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(
		courier("c1", domain.VehicleMoto, pos(40.41, -3.70)),
		courier("c2", domain.VehicleCar, pos(40.42, -3.71)),
	)
	tr, _ := mountTracker(t, b, Options{Filters: domain.Filters{Vehicle: domain.VehicleMoto}})

	if got := tr.LiveKeys(); !got.Equal(domain.NewKeySet(domain.FleetKey("c1"))) {
		t.Fatalf("moto keys = %v", got.Sorted())
	}

	if err := tr.SetFilters(context.Background(), domain.Filters{Vehicle: domain.VehicleCar}); err != nil {
		t.Fatalf("set filters: %v", err)
	}
	if got := tr.LiveKeys(); !got.Equal(domain.NewKeySet(domain.FleetKey("c2"))) {
		t.Fatalf("car keys = %v", got.Sorted())
	}
	if fleet := tr.Fleet(); len(fleet) != 1 || fleet[0].Courier.ID != "c2" {
		t.Fatalf("fleet = %+v", fleet)
	}

	if err := tr.SetFilters(context.Background(), domain.Filters{Vehicle: domain.VehicleVan}); err != nil {
		t.Fatalf("set filters: %v", err)
	}
	if st := tr.State(); st.Status != StatusNoVisibleCouriers || len(tr.LiveKeys()) != 0 {
		t.Fatalf("state = %+v, keys = %v", st, tr.LiveKeys().Sorted())
	}
	if len(tr.Couriers()) != 2 {
		t.Fatalf("couriers list ignores filters")
	}
}

func TestTrackerSetFiltersWhileFleetIsRead(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(courier("c1", domain.VehicleMoto, pos(40.41, -3.70)))
	b.assign("c1", "o1", addrUnknown)

	m := newMockProvider()
	m.FailGeocode(addrUnknown, 1)
	tr := NewTracker(b, Options{})
	if err := tr.Mount(context.Background(), func(ctx context.Context) (ports.MapProvider, error) { return m, nil }); err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(tr.Dispose)

	if fleet := tr.Fleet(); len(fleet) != 1 || fleet[0].Destination != nil {
		t.Fatalf("first cycle should leave the destination unresolved: %+v", fleet)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, e := range tr.Fleet() {
				_ = e.Destination
			}
			_ = tr.State()
		}
	}()

	for i := 0; i < 5; i++ {
		if err := tr.SetFilters(context.Background(), domain.Filters{}); err != nil {
			t.Fatalf("set filters: %v", err)
		}
	}
	close(done)
	wg.Wait()

	fleet := tr.Fleet()
	if len(fleet) != 1 || fleet[0].Destination == nil {
		t.Fatalf("destination should resolve on re-reconcile: %+v", fleet)
	}
	rk := domain.RouteKey{CourierID: "c1", OrderID: "o1"}
	if !tr.LiveKeys().Has(domain.DestinationKey(rk)) {
		t.Fatalf("destination marker missing: %v", tr.LiveKeys().Sorted())
	}
}

func TestTrackerSelectionFollowsSnapshot(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(courier("c1", domain.VehicleMoto, pos(40.41, -3.70)))

	var mu sync.Mutex
	var selected []string
	tr, _ := mountTracker(t, b, Options{
		OnCourierSelected: func(c domain.Courier) {
			mu.Lock()
			defer mu.Unlock()
			selected = append(selected, c.ID)
		},
	})

	if err := tr.SelectCourier(context.Background(), "c1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tr.State().Selected != "c1" {
		t.Fatalf("selection lost after refresh")
	}

	b.setCouriers()
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tr.State().Selected != "" {
		t.Fatalf("vanished courier should be deselected")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(selected) != 2 {
		t.Fatalf("selection events = %v, want click plus one refresh", selected)
	}

	if err := tr.SelectCourier(context.Background(), "c1"); !errors.Is(err, ErrUnknownCourier) {
		t.Fatalf("err = %v, want ErrUnknownCourier", err)
	}
}

func TestTrackerAutoRefreshAndDispose(t *testing.T) {
	b := newFakeBackend()
	b.setCouriers(courier("c1", domain.VehicleMoto, pos(40.41, -3.70)))

	m := newMockProvider()
	tr := NewTracker(b, Options{AutoRefresh: true, RefreshInterval: 10 * time.Millisecond})
	if err := tr.Mount(context.Background(), func(ctx context.Context) (ports.MapProvider, error) { return m, nil }); err != nil {
		t.Fatalf("mount: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		calls := b.calls
		b.mu.Unlock()
		if calls >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := tr.SetAutoRefresh(false); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := tr.SetRefreshInterval(time.Hour); err != nil {
		t.Fatalf("interval: %v", err)
	}

	tr.Dispose()

	if len(m.Overlays()) != 0 {
		t.Fatalf("dispose should clear the map, %d overlays left", len(m.Overlays()))
	}
	if err := tr.Refresh(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("refresh after dispose err = %v", err)
	}
	if err := tr.SetFilters(context.Background(), domain.Filters{}); !errors.Is(err, ErrDisposed) {
		t.Fatalf("set filters after dispose err = %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls < 3 {
		t.Fatalf("auto refresh ran %d cycles, want at least 3", b.calls)
	}
}
