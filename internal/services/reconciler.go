package services

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultReconcileConcurrency = 5

// VisibleKeys is the overlay key set a snapshot should produce under filters:
// a marker for every visible courier with a position, a destination marker
// once its address is resolved and a route line once one has been computed.
func VisibleKeys(snap *domain.Snapshot, filters domain.Filters, hasRoute func(domain.RouteKey) bool) domain.KeySet {
	keys := make(domain.KeySet)
	if snap == nil {
		return keys
	}

	for _, id := range snap.CourierIDs() {
		e := snap.Entries[id]
		if !filters.Matches(e) || e.Courier.Position == nil {
			continue
		}
		keys.Add(domain.FleetKey(id))

		rk, ok := e.RouteKey()
		if !ok {
			continue
		}
		if e.Destination != nil {
			keys.Add(domain.DestinationKey(rk))
		}
		if hasRoute != nil && hasRoute(rk) {
			keys.Add(domain.RouteOverlayKey(rk))
		}
	}
	return keys
}

// EntityReconciler diffs a snapshot against what is on the map and issues
// the minimal set of overlay changes.
type EntityReconciler struct {
	geocodes    *GeocodeCache
	routes      *RouteCache
	overlays    *OverlayRegistry
	concurrency int
}

func NewEntityReconciler(geocodes *GeocodeCache, routes *RouteCache, overlays *OverlayRegistry) *EntityReconciler {
	return &EntityReconciler{
		geocodes:    geocodes,
		routes:      routes,
		overlays:    overlays,
		concurrency: defaultReconcileConcurrency,
	}
}

// Reconcile brings the map in line with snap under filters and returns the
// keys now drawn. Stale overlays are removed before markers are upserted,
// and routes are ensured last. Resolved destinations are written into the
// snapshot entries, so snap must not be shared with concurrent readers.
// A per-entity failure is logged and never stops the pass;
// the only error is the context's.
func (r *EntityReconciler) Reconcile(
	ctx context.Context,
	snap *domain.Snapshot,
	previousKeys domain.KeySet,
	filters domain.Filters,
) (keys domain.KeySet, err error) {
	defer obs.Time(ctx, "reconcile")(&err)

	if snap == nil {
		snap = domain.NewSnapshot(time.Time{})
	}

	visible := r.visibleEntries(snap, filters)

	// Entries live as long as their pair is in the snapshot, visible or not.
	if n := r.routes.Prune(snap.RouteKeys()); n > 0 {
		log.Printf("cycle_id=%s pruned route entries: count=%d", obs.CycleID(ctx), n)
	}

	expected := VisibleKeys(snap, filters, r.hasRoute)

	stale := r.overlays.LiveKeys()
	for k := range previousKeys {
		stale.Add(k)
	}
	for _, k := range stale.Minus(expected).Sorted() {
		r.overlays.Remove(ctx, k)
	}
	if err := ctx.Err(); err != nil {
		return r.overlays.LiveKeys(), err
	}

	selected := r.overlays.Selected()
	for _, e := range visible {
		r.overlays.UpsertFleetMarker(ctx, e, e.Courier.ID == selected)
	}
	if err := ctx.Err(); err != nil {
		return r.overlays.LiveKeys(), err
	}

	r.resolveDestinations(ctx, visible)
	if err := ctx.Err(); err != nil {
		return r.overlays.LiveKeys(), err
	}

	for _, e := range visible {
		if rk, ok := e.RouteKey(); ok && e.Destination != nil {
			r.overlays.UpsertDestination(ctx, rk, *e.Destination)
		}
	}

	r.ensureRoutes(ctx, visible)

	return r.overlays.LiveKeys(), ctx.Err()
}

// Visible entries with a position, in courier id order.
func (r *EntityReconciler) visibleEntries(snap *domain.Snapshot, filters domain.Filters) []*domain.SnapshotEntry {
	out := make([]*domain.SnapshotEntry, 0, len(snap.Entries))
	for _, id := range snap.CourierIDs() {
		e := snap.Entries[id]
		if filters.Matches(e) && e.Courier.Position != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *EntityReconciler) hasRoute(k domain.RouteKey) bool {
	_, ok := r.routes.Get(k)
	return ok
}

// Each goroutine writes only its own entry.
func (r *EntityReconciler) resolveDestinations(ctx context.Context, entries []*domain.SnapshotEntry) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, e := range entries {
		if e.Order == nil || e.Destination != nil {
			continue
		}
		e := e
		g.Go(func() error {
			coords, err := r.geocodes.Resolve(ctx, e.Order.Address)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("cycle_id=%s destination unresolved: courier_id=%s order_id=%s err=%v",
						obs.CycleID(ctx), e.Courier.ID, e.Order.ID, err)
				}
				return nil
			}
			e.Destination = &coords
			return nil
		})
	}
	_ = g.Wait()
}

func (r *EntityReconciler) ensureRoutes(ctx context.Context, entries []*domain.SnapshotEntry) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, e := range entries {
		if e.Order == nil || e.Destination == nil || e.Courier.Position == nil {
			continue
		}
		e := e
		origin, dest := *e.Courier.Position, *e.Destination
		g.Go(func() error {
			// Failures are logged inside Ensure and the previous route stays up.
			_, _ = r.routes.Ensure(ctx, e.Courier.ID, e.Order.ID, origin, dest)
			return nil
		})
	}
	_ = g.Wait()
}
