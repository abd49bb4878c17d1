package domain

import (
	"net/url"
	"sort"
	"strings"
)

// OverlayKey identifies a rendered overlay by the entity it belongs to.
type OverlayKey string

const (
	fleetPrefix       = "fleet:"
	destinationPrefix = "dest:"
	routePrefix       = "route:"
)

func FleetKey(courierID string) OverlayKey { return OverlayKey(fleetPrefix + courierID) }

func DestinationKey(k RouteKey) OverlayKey { return OverlayKey(destinationPrefix + pairSuffix(k)) }

func RouteOverlayKey(k RouteKey) OverlayKey { return OverlayKey(routePrefix + pairSuffix(k)) }

// Both ids are escaped so the ':' between them is unambiguous whatever the
// backend's id alphabet.
func pairSuffix(k RouteKey) string {
	return url.QueryEscape(k.CourierID) + ":" + url.QueryEscape(k.OrderID)
}

func (k OverlayKey) IsFleet() bool       { return strings.HasPrefix(string(k), fleetPrefix) }
func (k OverlayKey) IsDestination() bool { return strings.HasPrefix(string(k), destinationPrefix) }
func (k OverlayKey) IsRoute() bool       { return strings.HasPrefix(string(k), routePrefix) }

// CourierID returns the courier the overlay belongs to.
func (k OverlayKey) CourierID() string {
	s := string(k)
	switch {
	case k.IsFleet():
		return strings.TrimPrefix(s, fleetPrefix)
	case k.IsDestination():
		s = strings.TrimPrefix(s, destinationPrefix)
	case k.IsRoute():
		s = strings.TrimPrefix(s, routePrefix)
	default:
		return ""
	}
	escaped, _, _ := strings.Cut(s, ":")
	id, err := url.QueryUnescape(escaped)
	if err != nil {
		return ""
	}
	return id
}

type KeySet map[OverlayKey]struct{}

func NewKeySet(keys ...OverlayKey) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Add(k OverlayKey) { s[k] = struct{}{} }

func (s KeySet) Has(k OverlayKey) bool {
	_, ok := s[k]
	return ok
}

// Minus returns the keys of s absent from o.
func (s KeySet) Minus(o KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if !o.Has(k) {
			out.Add(k)
		}
	}
	return out
}

func (s KeySet) Equal(o KeySet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the keys in ascending order.
func (s KeySet) Sorted() []OverlayKey {
	out := make([]OverlayKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
