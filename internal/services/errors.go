package services

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable: the map provider failed to initialize. Terminal.
	ErrProviderUnavailable = errors.New("map provider unavailable")
	// ErrFetch: one poll cycle could not build a snapshot. The next cycle retries.
	ErrFetch = errors.New("fleet fetch failed")
	// ErrGeocode: an address could not be resolved this cycle.
	ErrGeocode = errors.New("geocode failed")
	// ErrRoute: a route could not be computed; the previous one is kept.
	ErrRoute = errors.New("route failed")

	ErrDisposed         = errors.New("tracker disposed")
	ErrNotMounted       = errors.New("tracker not mounted")
	ErrUnknownCourier   = errors.New("unknown courier")
	ErrRefreshInFlight  = errors.New("refresh already in flight")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// FetchError reports which backend call broke a fetch cycle.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch snapshot: %s: %v", e.Op, e.Err) }

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// entityError is a per-entity failure (one address, one route) that never
// aborts a reconciliation pass.
type entityError struct {
	kind    error
	subject string
	err     error
}

func (e *entityError) Error() string { return fmt.Sprintf("%v: %s: %v", e.kind, e.subject, e.err) }

func (e *entityError) Unwrap() []error { return []error{e.kind, e.err} }
