package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Identifies the route between a courier and the order they deliver.
type RouteKey struct {
	CourierID string
	OrderID   string
}

func (k RouteKey) String() string { return k.CourierID + "|" + k.OrderID }

// Represents the last successfully computed route for a RouteKey.
// Origin is the courier position the route was computed from.
type RouteEntry struct {
	Key             RouteKey
	Origin          Coordinates
	Destination     Coordinates
	DistanceMeters  int
	DurationSeconds int
	DistanceText    string
	DurationText    string
	Geometry        orb.LineString
	ComputedAt      time.Time
}

// FormatDistance renders meters the way the info panel shows them.
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return fmt.Sprintf("%.1f km", float64(meters)/1000)
}

// FormatDuration rounds to whole minutes, with hours past 60 minutes.
func FormatDuration(seconds int) string {
	mins := int(math.Round(float64(seconds) / 60))
	if mins < 1 {
		return "1 min"
	}
	if mins < 60 {
		return fmt.Sprintf("%d min", mins)
	}
	h, m := mins/60, mins%60
	if m == 0 {
		return fmt.Sprintf("%d h", h)
	}
	return fmt.Sprintf("%d h %d min", h, m)
}
