package services

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"
	"sync"
	"time"
)

const defaultRefreshInterval = 15 * time.Second

type ViewStatus string

const (
	StatusLoading             ViewStatus = "loading"
	StatusProviderUnavailable ViewStatus = "providerUnavailable"
	StatusNoVisibleCouriers   ViewStatus = "noVisibleCouriers"
	StatusReady               ViewStatus = "ready"
)

// ViewState is what the surrounding UI needs to draw its chrome.
type ViewState struct {
	Status          ViewStatus
	Refreshing      bool
	AutoRefresh     bool
	RefreshInterval time.Duration
	Filters         domain.Filters
	VisibleCouriers int
	Selected        string
	LastRefreshed   time.Time
	LastError       string
}

type Options struct {
	Filters         domain.Filters
	AutoRefresh     bool
	RefreshInterval time.Duration
	OrdersPageSize  int
	// Optional durable tier for geocode results.
	GeocodeStore ports.GeocodeStore

	OnCourierSelected        func(domain.Courier)
	OnFleetSnapshotRefreshed func([]domain.Courier)
}

// ProviderLoader initializes the map provider. It is called once per mount.
type ProviderLoader func(ctx context.Context) (ports.MapProvider, error)

// Tracker is the fleet map as the rest of the application sees it. It owns
// the caches, the overlay registry and the refresh schedule.
type Tracker struct {
	backend ports.FleetBackend
	fetcher *FleetSnapshotFetcher
	opts    Options

	// Serializes reconciliation against the current snapshot.
	reconcileMu sync.Mutex

	mu          sync.Mutex
	status      ViewStatus
	mounted     bool
	disposed    bool
	refreshing  bool
	autoRefresh bool
	interval    time.Duration
	filters     domain.Filters
	snapshot    *domain.Snapshot
	keys        domain.KeySet
	selected    string
	lastRefresh time.Time
	lastErr     error

	provider   ports.MapProvider
	geocodes   *GeocodeCache
	routes     *RouteCache
	overlays   *OverlayRegistry
	reconciler *EntityReconciler
	scheduler  *RenderScheduler
}

func NewTracker(backend ports.FleetBackend, opts Options) *Tracker {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Tracker{
		backend:     backend,
		fetcher:     NewFleetSnapshotFetcher(backend, opts.OrdersPageSize),
		opts:        opts,
		status:      StatusLoading,
		autoRefresh: opts.AutoRefresh,
		interval:    interval,
		filters:     opts.Filters,
		keys:        make(domain.KeySet),
	}
}

// Mount initializes the map provider, runs the first cycle and, when auto
// refresh is on, starts the schedule. A provider failure is terminal.
func (t *Tracker) Mount(ctx context.Context, load ProviderLoader) error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	if t.mounted {
		t.mu.Unlock()
		return errors.New("mount tracker: already mounted")
	}
	t.mu.Unlock()

	provider, err := load(ctx)
	if err != nil {
		t.mu.Lock()
		t.status = StatusProviderUnavailable
		t.lastErr = err
		t.mu.Unlock()
		log.Printf("map provider failed to initialize: err=%v", err)
		return fmt.Errorf("mount tracker: %w: %w", ErrProviderUnavailable, err)
	}

	overlays := NewOverlayRegistry(provider, t.courierSelected)
	geocodes := NewGeocodeCache(provider, t.opts.GeocodeStore)
	routes := NewRouteCache(provider, overlays)

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	t.provider = provider
	t.overlays = overlays
	t.geocodes = geocodes
	t.routes = routes
	t.reconciler = NewEntityReconciler(geocodes, routes, overlays)
	t.scheduler = NewRenderScheduler(t.cycle)
	t.mounted = true
	auto, interval := t.autoRefresh, t.interval
	t.mu.Unlock()

	t.scheduler.RunNow(ctx)

	if auto {
		if err := t.scheduler.Start(interval); err != nil {
			return fmt.Errorf("mount tracker: %w", err)
		}
	}
	return nil
}

// Refresh runs a cycle now and returns its fetch error, if any.
func (t *Tracker) Refresh(ctx context.Context) error {
	sched, err := t.mountedScheduler()
	if err != nil {
		return err
	}
	if !sched.RunNow(ctx) {
		return ErrRefreshInFlight
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// SetFilters re-reconciles the current snapshot under new filters without
// fetching.
func (t *Tracker) SetFilters(ctx context.Context, filters domain.Filters) error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	t.filters = filters
	mounted := t.mounted
	t.mu.Unlock()

	if !mounted {
		return nil
	}

	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()

	// The published snapshot is read by Fleet and State under t.mu while
	// the reconciler writes resolved destinations, so work on a copy.
	t.mu.Lock()
	snap, prev := t.snapshot.Clone(), t.keys
	filters = t.filters
	t.mu.Unlock()

	if snap == nil {
		return nil
	}

	keys, err := t.reconciler.Reconcile(ctx, snap, prev, filters)
	if err != nil {
		return fmt.Errorf("apply filters: %w", err)
	}
	t.publish(snap, keys, filters)
	return nil
}

func (t *Tracker) SetAutoRefresh(on bool) error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	t.autoRefresh = on
	sched, interval := t.scheduler, t.interval
	t.mu.Unlock()

	if sched == nil {
		return nil
	}
	if on {
		return sched.Start(interval)
	}
	sched.Pause()
	return nil
}

func (t *Tracker) SetRefreshInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("set refresh interval: must be positive, got %s", d)
	}

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return ErrDisposed
	}
	t.interval = d
	sched := t.scheduler
	t.mu.Unlock()

	if sched == nil {
		return nil
	}
	return sched.SetInterval(d)
}

// SelectCourier behaves like a click on the courier's marker.
func (t *Tracker) SelectCourier(ctx context.Context, courierID string) error {
	if _, err := t.mountedScheduler(); err != nil {
		return err
	}
	return t.overlays.Click(ctx, courierID)
}

func (t *Tracker) State() ViewState {
	t.mu.Lock()
	defer t.mu.Unlock()

	vs := ViewState{
		Status:          t.status,
		Refreshing:      t.refreshing,
		AutoRefresh:     t.autoRefresh,
		RefreshInterval: t.interval,
		Filters:         t.filters,
		VisibleCouriers: countVisible(t.snapshot, t.filters),
		Selected:        t.selected,
		LastRefreshed:   t.lastRefresh,
	}
	if t.lastErr != nil {
		vs.LastError = t.lastErr.Error()
	}
	return vs
}

// Couriers returns the couriers of the last snapshot in id order.
func (t *Tracker) Couriers() []domain.Courier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Couriers()
}

// Fleet returns copies of the last snapshot's entries that pass the
// current filters, in courier id order.
func (t *Tracker) Fleet() []domain.SnapshotEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.SnapshotEntry, 0)
	for _, id := range t.snapshot.CourierIDs() {
		e := t.snapshot.Entries[id]
		if t.filters.Matches(e) {
			out = append(out, *e)
		}
	}
	return out
}

// Route returns the cached route of a pair, if one has been computed.
func (t *Tracker) Route(key domain.RouteKey) (domain.RouteEntry, bool) {
	t.mu.Lock()
	routes := t.routes
	t.mu.Unlock()

	if routes == nil {
		return domain.RouteEntry{}, false
	}
	return routes.Get(key)
}

func (t *Tracker) LiveKeys() domain.KeySet {
	t.mu.Lock()
	overlays := t.overlays
	t.mu.Unlock()

	if overlays == nil {
		return make(domain.KeySet)
	}
	return overlays.LiveKeys()
}

// Dispose stops the schedule, waits for any in-flight cycle and removes
// every overlay. The tracker cannot be reused.
func (t *Tracker) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	sched, overlays := t.scheduler, t.overlays
	t.mu.Unlock()

	if sched != nil {
		sched.Stop()
		sched.Wait()
	}

	t.reconcileMu.Lock()
	defer t.reconcileMu.Unlock()
	if overlays != nil {
		overlays.Dispose()
	}
}

func (t *Tracker) mountedScheduler() (*RenderScheduler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.disposed:
		return nil, ErrDisposed
	case !t.mounted:
		return nil, ErrNotMounted
	}
	return t.scheduler, nil
}

func (t *Tracker) cycle(ctx context.Context) {
	t.mu.Lock()
	t.refreshing = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.refreshing = false
		t.mu.Unlock()
	}()

	snap, err := t.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("cycle_id=%s fleet refresh failed, keeping overlays: err=%v", obs.CycleID(ctx), err)
		}
		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()
		return
	}

	t.reconcileMu.Lock()

	if ctx.Err() != nil {
		t.reconcileMu.Unlock()
		return
	}

	t.mu.Lock()
	prevSnap, prevKeys, filters := t.snapshot, t.keys, t.filters
	t.mu.Unlock()

	t.fetcher.CarryForward(snap, prevSnap)

	keys, err := t.reconciler.Reconcile(ctx, snap, prevKeys, filters)
	if err != nil {
		// Stopped mid-pass: nothing from this cycle is published.
		t.reconcileMu.Unlock()
		return
	}

	t.publish(snap, keys, filters)
	t.mu.Lock()
	t.lastErr = nil
	t.mu.Unlock()
	t.reconcileMu.Unlock()

	t.refreshSelection(snap)

	if cb := t.opts.OnFleetSnapshotRefreshed; cb != nil {
		cb(snap.Couriers())
	}
}

func (t *Tracker) publish(snap *domain.Snapshot, keys domain.KeySet, filters domain.Filters) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot = snap
	t.keys = keys
	t.lastRefresh = snap.FetchedAt
	if countVisible(snap, filters) == 0 {
		t.status = StatusNoVisibleCouriers
	} else {
		t.status = StatusReady
	}
}

// A selected courier still on the map is re-emitted with its fresh data;
// one that left it is cleared.
func (t *Tracker) refreshSelection(snap *domain.Snapshot) {
	t.mu.Lock()
	id := t.selected
	if id == "" {
		t.mu.Unlock()
		return
	}
	if t.overlays.Selected() != id {
		t.selected = ""
		t.mu.Unlock()
		return
	}
	e, ok := snap.Entries[id]
	t.mu.Unlock()

	if ok && t.opts.OnCourierSelected != nil {
		t.opts.OnCourierSelected(e.Courier)
	}
}

func (t *Tracker) courierSelected(c domain.Courier) {
	t.mu.Lock()
	t.selected = c.ID
	t.mu.Unlock()

	if cb := t.opts.OnCourierSelected; cb != nil {
		cb(c)
	}
}

func countVisible(snap *domain.Snapshot, filters domain.Filters) int {
	if snap == nil {
		return 0
	}
	n := 0
	for _, e := range snap.Entries {
		if filters.Matches(e) {
			n++
		}
	}
	return n
}
