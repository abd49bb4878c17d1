package domain

import (
	"sort"
	"time"
)

// One courier's row in a Snapshot.
// Order is the courier's tracked delivering order, if any. Destination is
// the geocoded order address once resolved.
type SnapshotEntry struct {
	Courier     Courier
	Order       *DeliveryOrder
	Destination *Coordinates
}

// RouteKey returns the (courier, order) pair, false when no order is tracked.
func (e *SnapshotEntry) RouteKey() (RouteKey, bool) {
	if e.Order == nil {
		return RouteKey{}, false
	}
	return RouteKey{CourierID: e.Courier.ID, OrderID: e.Order.ID}, true
}

// Point-in-time view of the fleet joined with in-flight deliveries.
// A Snapshot is rebuilt every poll cycle.
type Snapshot struct {
	FetchedAt time.Time
	Entries   map[string]*SnapshotEntry
}

func NewSnapshot(fetchedAt time.Time) *Snapshot {
	return &Snapshot{FetchedAt: fetchedAt, Entries: make(map[string]*SnapshotEntry)}
}

// Clone copies the snapshot and its entries so the copy's destinations can be
// written while readers still hold the original. Courier and order values are
// shared; they are never mutated after a fetch.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := NewSnapshot(s.FetchedAt)
	for id, e := range s.Entries {
		cp := *e
		out.Entries[id] = &cp
	}
	return out
}

// Return courier ids in ascending order so iteration is deterministic.
func (s *Snapshot) CourierIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Entries))
	for id := range s.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Snapshot) Couriers() []Courier {
	ids := s.CourierIDs()
	out := make([]Courier, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Entries[id].Courier)
	}
	return out
}

// RouteKeys lists every (courier, order) pair present in the snapshot.
func (s *Snapshot) RouteKeys() map[RouteKey]struct{} {
	out := make(map[RouteKey]struct{})
	if s == nil {
		return out
	}
	for _, e := range s.Entries {
		if k, ok := e.RouteKey(); ok {
			out[k] = struct{}{}
		}
	}
	return out
}
