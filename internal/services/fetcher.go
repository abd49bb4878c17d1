package services

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"log"
	"sync"
	"time"
)

const defaultOrdersPageSize = 100

// FleetSnapshotFetcher builds a Snapshot by joining active couriers with
// delivering orders through their assignments.
type FleetSnapshotFetcher struct {
	backend  ports.FleetBackend
	pageSize int
	now      func() time.Time
}

func NewFleetSnapshotFetcher(backend ports.FleetBackend, pageSize int) *FleetSnapshotFetcher {
	if pageSize <= 0 {
		pageSize = defaultOrdersPageSize
	}
	return &FleetSnapshotFetcher{backend: backend, pageSize: pageSize, now: time.Now}
}

type orderLink struct {
	order      domain.DeliveryOrder
	assignment domain.Assignment
	ok         bool
}

// Fetch returns a fresh snapshot. A failed courier or order listing fails the
// whole fetch with a *FetchError; a failed assignment lookup only drops that
// order. When several orders point at one courier, the first in backend
// order wins.
func (f *FleetSnapshotFetcher) Fetch(ctx context.Context) (snap *domain.Snapshot, err error) {
	defer obs.Time(ctx, "fetch.snapshot")(&err)

	couriers, err := f.backend.ListActiveCouriers(ctx)
	if err != nil {
		return nil, &FetchError{Op: "list couriers", Err: err}
	}

	orders, err := f.backend.ListOrders(ctx, domain.OrderDelivering, f.pageSize)
	if err != nil {
		return nil, &FetchError{Op: "list orders", Err: err}
	}

	links := make([]orderLink, len(orders))

	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup

	for i, o := range orders {
		wg.Add(1)
		go func(i int, o domain.DeliveryOrder) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			assignments, err := f.backend.ListAssignmentsForOrder(ctx, o.ID)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("cycle_id=%s assignments lookup failed, order omitted: order_id=%s err=%v", obs.CycleID(ctx), o.ID, err)
				}
				return
			}

			a, ok := domain.SelectActiveAssignment(assignments)
			links[i] = orderLink{order: o, assignment: a, ok: ok}
		}(i, o)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Op: "list assignments", Err: err}
	}

	snap = domain.NewSnapshot(f.now())
	for _, c := range couriers {
		snap.Entries[c.ID] = &domain.SnapshotEntry{Courier: c}
	}

	for _, l := range links {
		if !l.ok {
			continue
		}
		e, found := snap.Entries[l.assignment.CourierID]
		if !found {
			log.Printf("cycle_id=%s order courier not active, order omitted: order_id=%s courier_id=%s",
				obs.CycleID(ctx), l.order.ID, l.assignment.CourierID)
			continue
		}
		if e.Order != nil {
			continue
		}
		order := l.order
		e.Order = &order
	}

	return snap, nil
}

// CarryForward copies resolved destinations from prev into next for every
// courier that still tracks the same order.
func (f *FleetSnapshotFetcher) CarryForward(next, prev *domain.Snapshot) int {
	if next == nil || prev == nil {
		return 0
	}

	n := 0
	for id, e := range next.Entries {
		if e.Order == nil || e.Destination != nil {
			continue
		}
		old, ok := prev.Entries[id]
		if !ok || old.Order == nil || old.Destination == nil || old.Order.ID != e.Order.ID {
			continue
		}
		dest := *old.Destination
		e.Destination = &dest
		n++
	}
	return n
}
