package ports

import (
	"context"
	"errors"
	"fleet-tracking-service/internal/domain"

	"github.com/paulmach/orb"
)

// ErrNotFound is returned by a provider when an address or route has no result.
var ErrNotFound = errors.New("not found")

// Contract for resolving an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}

// Travel distance, duration and path between two points.
type RouteResult struct {
	DistanceMeters  int
	DurationSeconds int
	Polyline        orb.LineString
	Legs            int
}

// Contract for computing a driving route between two points.
type Router interface {
	ComputeRoute(ctx context.Context, origin, destination domain.Coordinates) (RouteResult, error)
}

// OverlayHandle is an opaque reference to something drawn by a Renderer.
// Only the overlay registry keeps handles.
type OverlayHandle string

type MarkerOptions struct {
	Position domain.Coordinates
	Icon     string
	Title    string
	ZIndex   int
}

type PolylineOptions struct {
	Path        orb.LineString
	StrokeColor string
	StrokeWidth int
}

type InfoPanelOptions struct {
	Anchor OverlayHandle
	Title  string
	Lines  []string
	Open   bool
}

// Contract for drawing overlays on the map surface.
type Renderer interface {
	RenderMarker(ctx context.Context, opts MarkerOptions) (OverlayHandle, error)
	RenderPolyline(ctx context.Context, opts PolylineOptions) (OverlayHandle, error)
	RenderInfoPanel(ctx context.Context, opts InfoPanelOptions) (OverlayHandle, error)
	SetMarker(ctx context.Context, h OverlayHandle, opts MarkerOptions) error
	SetPolyline(ctx context.Context, h OverlayHandle, opts PolylineOptions) error
	SetInfoPanel(ctx context.Context, h OverlayHandle, opts InfoPanelOptions) error
	Remove(ctx context.Context, h OverlayHandle) error
}

// MapProvider is the whole mapping capability injected into the tracker.
type MapProvider interface {
	Geocoder
	Router
	Renderer
}
