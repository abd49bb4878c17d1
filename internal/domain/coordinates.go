package domain

import "github.com/paulmach/orb"

// Immutable geographic coordinates (latitude, longitude).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Return coordinates as [lng, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// Point converts to an orb point (x=lng, y=lat).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lng, c.Lat} }

func (c Coordinates) Equal(o Coordinates) bool { return c.Lat == o.Lat && c.Lng == o.Lng }
