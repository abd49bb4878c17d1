package services

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"
	"slices"
	"sync"
)

const (
	routeStrokeColor = "#1a73e8"
	routeStrokeWidth = 4
	selectedZIndex   = 1000
)

// MarkerIcon maps a vehicle category and selection state to an icon name.
// Unknown categories get the default icon.
func MarkerIcon(category domain.VehicleCategory, selected bool) string {
	icon := "courier-default"
	switch category {
	case domain.VehicleMoto:
		icon = "courier-moto"
	case domain.VehicleCar:
		icon = "courier-car"
	case domain.VehicleBicycle:
		icon = "courier-bicycle"
	case domain.VehicleVan:
		icon = "courier-van"
	}
	if selected {
		icon += "-selected"
	}
	return icon
}

type fleetRecord struct {
	marker    ports.OverlayHandle
	opts      ports.MarkerOptions
	entry     domain.SnapshotEntry
	panel     ports.OverlayHandle
	panelOpen bool
}

type destinationRecord struct {
	handle ports.OverlayHandle
	opts   ports.MarkerOptions
}

type routeRecord struct {
	handle ports.OverlayHandle
	opts   ports.PolylineOptions
	entry  domain.RouteEntry
}

// OverlayRegistry owns every handle drawn on the map, keyed by entity.
//
// Upserts are idempotent on the key: an unchanged overlay costs no renderer
// call. Mutations are dropped once the caller's context is done or the
// registry has been disposed.
type OverlayRegistry struct {
	renderer ports.Renderer
	onSelect func(domain.Courier)

	mu       sync.Mutex
	disposed bool
	fleet    map[string]*fleetRecord
	dests    map[domain.OverlayKey]*destinationRecord
	routes   map[domain.OverlayKey]*routeRecord
	selected string
}

func NewOverlayRegistry(renderer ports.Renderer, onSelect func(domain.Courier)) *OverlayRegistry {
	return &OverlayRegistry{
		renderer: renderer,
		onSelect: onSelect,
		fleet:    make(map[string]*fleetRecord),
		dests:    make(map[domain.OverlayKey]*destinationRecord),
		routes:   make(map[domain.OverlayKey]*routeRecord),
	}
}

func (r *OverlayRegistry) live(ctx context.Context) bool {
	return !r.disposed && ctx.Err() == nil
}

// UpsertFleetMarker draws or moves a courier's marker. Entries without a
// position have nothing to draw and are ignored.
func (r *OverlayRegistry) UpsertFleetMarker(ctx context.Context, entry *domain.SnapshotEntry, selected bool) {
	if entry == nil || entry.Courier.Position == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live(ctx) {
		return
	}

	c := entry.Courier
	opts := ports.MarkerOptions{
		Position: *c.Position,
		Icon:     MarkerIcon(c.Vehicle, selected),
		Title:    c.Name,
	}
	if selected {
		opts.ZIndex = selectedZIndex
	}

	rec, ok := r.fleet[c.ID]
	if !ok {
		h, err := r.renderer.RenderMarker(ctx, opts)
		if err != nil {
			log.Printf("render fleet marker failed: courier_id=%s err=%v", c.ID, err)
			return
		}
		r.fleet[c.ID] = &fleetRecord{marker: h, opts: opts, entry: *entry}
		return
	}

	rec.entry = *entry
	if !sameMarker(rec.opts, opts) {
		if err := r.renderer.SetMarker(ctx, rec.marker, opts); err != nil {
			log.Printf("update fleet marker failed: courier_id=%s err=%v", c.ID, err)
		} else {
			rec.opts = opts
		}
	}
	r.refreshPanelLocked(ctx, c.ID)
}

// UpsertDestination draws the drop-off marker of a (courier, order) pair.
func (r *OverlayRegistry) UpsertDestination(ctx context.Context, key domain.RouteKey, coords domain.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live(ctx) {
		return
	}

	dk := domain.DestinationKey(key)
	opts := ports.MarkerOptions{
		Position: coords,
		Icon:     "destination",
		Title:    "Order " + key.OrderID,
	}

	rec, exists := r.dests[dk]
	if !exists {
		h, err := r.renderer.RenderMarker(ctx, opts)
		if err != nil {
			log.Printf("render destination failed: key=%s err=%v", dk, err)
			return
		}
		r.dests[dk] = &destinationRecord{handle: h, opts: opts}
		return
	}

	if sameMarker(rec.opts, opts) {
		return
	}
	if err := r.renderer.SetMarker(ctx, rec.handle, opts); err != nil {
		log.Printf("update destination failed: key=%s err=%v", dk, err)
		return
	}
	rec.opts = opts
}

// UpsertRoute draws or replaces the route line of a pair and refreshes the
// courier's info panel.
func (r *OverlayRegistry) UpsertRoute(ctx context.Context, entry domain.RouteEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live(ctx) {
		return
	}

	key := domain.RouteOverlayKey(entry.Key)
	opts := ports.PolylineOptions{
		Path:        entry.Geometry,
		StrokeColor: routeStrokeColor,
		StrokeWidth: routeStrokeWidth,
	}

	rec, ok := r.routes[key]
	switch {
	case !ok:
		h, err := r.renderer.RenderPolyline(ctx, opts)
		if err != nil {
			log.Printf("render route failed: key=%s err=%v", key, err)
			return
		}
		r.routes[key] = &routeRecord{handle: h, opts: opts, entry: entry}
	case !slices.Equal(rec.opts.Path, opts.Path):
		if err := r.renderer.SetPolyline(ctx, rec.handle, opts); err != nil {
			log.Printf("update route failed: key=%s err=%v", key, err)
			return
		}
		rec.opts = opts
		rec.entry = entry
	default:
		rec.entry = entry
	}

	r.refreshPanelLocked(ctx, entry.Key.CourierID)
}

// Remove destroys the overlay for key. A fleet key takes the courier's info
// panel and selection with it.
func (r *OverlayRegistry) Remove(ctx context.Context, key domain.OverlayKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live(ctx) {
		return
	}
	r.removeLocked(ctx, key)
}

// RemoveAll removes every live key matching pred.
func (r *OverlayRegistry) RemoveAll(ctx context.Context, pred func(domain.OverlayKey) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live(ctx) {
		return
	}
	r.removeAllLocked(ctx, pred)
}

func (r *OverlayRegistry) removeAllLocked(ctx context.Context, pred func(domain.OverlayKey) bool) {
	for _, k := range r.liveKeysLocked().Sorted() {
		if pred(k) {
			r.removeLocked(ctx, k)
		}
	}
}

func (r *OverlayRegistry) removeLocked(ctx context.Context, key domain.OverlayKey) {
	switch {
	case key.IsFleet():
		id := key.CourierID()
		rec, ok := r.fleet[id]
		if !ok {
			return
		}
		if rec.panel != "" {
			r.removeHandle(ctx, key, rec.panel)
		}
		r.removeHandle(ctx, key, rec.marker)
		delete(r.fleet, id)
		if r.selected == id {
			r.selected = ""
		}
	case key.IsDestination():
		if rec, ok := r.dests[key]; ok {
			r.removeHandle(ctx, key, rec.handle)
			delete(r.dests, key)
		}
	case key.IsRoute():
		if rec, ok := r.routes[key]; ok {
			r.removeHandle(ctx, key, rec.handle)
			delete(r.routes, key)
			r.refreshPanelLocked(ctx, key.CourierID())
		}
	}
}

// The key is forgotten even if the renderer fails, so it is never orphaned
// in the registry.
func (r *OverlayRegistry) removeHandle(ctx context.Context, key domain.OverlayKey, h ports.OverlayHandle) {
	if err := r.renderer.Remove(ctx, h); err != nil {
		log.Printf("remove overlay failed: key=%s err=%v", key, err)
	}
}

// LiveKeys returns the keys currently drawn.
func (r *OverlayRegistry) LiveKeys() domain.KeySet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveKeysLocked()
}

func (r *OverlayRegistry) liveKeysLocked() domain.KeySet {
	keys := make(domain.KeySet, len(r.fleet)+len(r.dests)+len(r.routes))
	for id := range r.fleet {
		keys.Add(domain.FleetKey(id))
	}
	for k := range r.dests {
		keys.Add(k)
	}
	for k := range r.routes {
		keys.Add(k)
	}
	return keys
}

// Selected returns the id of the selected courier, if any.
func (r *OverlayRegistry) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// OpenPanel returns the courier whose info panel is open, if any.
func (r *OverlayRegistry) OpenPanel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.fleet {
		if rec.panelOpen {
			return id
		}
	}
	return ""
}

// Click handles a click on a courier's marker: every other panel closes,
// this one opens, the marker is drawn selected and the selection is emitted.
func (r *OverlayRegistry) Click(ctx context.Context, courierID string) error {
	r.mu.Lock()

	if !r.live(ctx) {
		r.mu.Unlock()
		return ErrDisposed
	}

	rec, ok := r.fleet[courierID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("click marker %s: %w", courierID, ErrUnknownCourier)
	}

	for id, other := range r.fleet {
		if id != courierID && other.panelOpen {
			other.panelOpen = false
			if err := r.renderer.SetInfoPanel(ctx, other.panel, r.panelOptionsLocked(id, other)); err != nil {
				log.Printf("close info panel failed: courier_id=%s err=%v", id, err)
			}
		}
	}

	prev := r.selected
	r.selected = courierID
	if prevRec, ok := r.fleet[prev]; ok && prev != courierID {
		r.restyleLocked(ctx, prevRec, false)
	}
	r.restyleLocked(ctx, rec, true)

	rec.panelOpen = true
	if rec.panel == "" {
		h, err := r.renderer.RenderInfoPanel(ctx, r.panelOptionsLocked(courierID, rec))
		if err != nil {
			log.Printf("render info panel failed: courier_id=%s err=%v", courierID, err)
			rec.panelOpen = false
		} else {
			rec.panel = h
		}
	} else if err := r.renderer.SetInfoPanel(ctx, rec.panel, r.panelOptionsLocked(courierID, rec)); err != nil {
		log.Printf("open info panel failed: courier_id=%s err=%v", courierID, err)
	}

	courier := rec.entry.Courier
	onSelect := r.onSelect
	r.mu.Unlock()

	if onSelect != nil {
		onSelect(courier)
	}
	return nil
}

// Dispose removes every overlay and turns later mutations into no-ops.
func (r *OverlayRegistry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return
	}
	r.removeAllLocked(context.Background(), func(domain.OverlayKey) bool { return true })
	r.disposed = true
}

func (r *OverlayRegistry) restyleLocked(ctx context.Context, rec *fleetRecord, selected bool) {
	opts := rec.opts
	opts.Icon = MarkerIcon(rec.entry.Courier.Vehicle, selected)
	opts.ZIndex = 0
	if selected {
		opts.ZIndex = selectedZIndex
	}
	if sameMarker(rec.opts, opts) {
		return
	}
	if err := r.renderer.SetMarker(ctx, rec.marker, opts); err != nil {
		log.Printf("restyle marker failed: courier_id=%s err=%v", rec.entry.Courier.ID, err)
		return
	}
	rec.opts = opts
}

func (r *OverlayRegistry) refreshPanelLocked(ctx context.Context, courierID string) {
	rec, ok := r.fleet[courierID]
	if !ok || rec.panel == "" || !rec.panelOpen {
		return
	}
	if err := r.renderer.SetInfoPanel(ctx, rec.panel, r.panelOptionsLocked(courierID, rec)); err != nil {
		log.Printf("refresh info panel failed: courier_id=%s err=%v", courierID, err)
	}
}

func (r *OverlayRegistry) panelOptionsLocked(courierID string, rec *fleetRecord) ports.InfoPanelOptions {
	e := rec.entry
	lines := []string{
		"Vehicle: " + string(e.Courier.Vehicle),
		"Status: " + string(e.Bucket()),
	}
	if e.Courier.Phone != "" {
		lines = append(lines, "Phone: "+e.Courier.Phone)
	}

	if e.Order != nil {
		lines = append(lines,
			fmt.Sprintf("Order %s for %s (%.2f)", e.Order.ID, e.Order.CustomerName, e.Order.Amount),
			"Deliver to: "+e.Order.Address,
		)
		key := domain.RouteKey{CourierID: courierID, OrderID: e.Order.ID}
		if rr, ok := r.routes[domain.RouteOverlayKey(key)]; ok {
			lines = append(lines, fmt.Sprintf("Route: %s, %s", rr.entry.DistanceText, rr.entry.DurationText))
		} else {
			lines = append(lines, "Route: pending")
		}
	}

	return ports.InfoPanelOptions{
		Anchor: rec.marker,
		Title:  e.Courier.Name,
		Lines:  lines,
		Open:   rec.panelOpen,
	}
}

func sameMarker(a, b ports.MarkerOptions) bool {
	return a.Position.Equal(b.Position) && a.Icon == b.Icon && a.Title == b.Title && a.ZIndex == b.ZIndex
}
