package mapprovider

import (
	"context"
	"encoding/json"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
	Units       string      `json:"units"`
}

// ComputeRoute asks the ORS directions endpoint for a driving route and
// decodes the GeoJSON answer. Unroutable pairs map to ports.ErrNotFound.
func (o *ORSClient) ComputeRoute(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "ors.ComputeRoute")(&err)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{origin.CoordsToList(), destination.CoordsToList()},
		Units:       "m",
	})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	body, err := o.call(ctx, orsRequest{
		op:     "directions",
		method: http.MethodPost,
		path:   "/v2/directions/" + url.PathEscape(o.profile) + "/geojson",
		body:   payload,
	})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("compute route: %w", err)
	}

	return decodeDirections(body)
}

func decodeDirections(body []byte) (ports.RouteResult, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(fc.Features) == 0 {
		return ports.RouteResult{}, fmt.Errorf("directions: %w", ports.ErrNotFound)
	}

	feature := fc.Features[0]
	if feature.Geometry == nil {
		return ports.RouteResult{}, fmt.Errorf("directions: route without geometry")
	}
	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return ports.RouteResult{}, fmt.Errorf("directions: unexpected geometry %q", feature.Geometry.GeoJSONType())
	}

	summary, _ := feature.Properties["summary"].(map[string]interface{})
	meters, _ := summary["distance"].(float64)
	seconds, _ := summary["duration"].(float64)

	segments, _ := feature.Properties["segments"].([]interface{})

	// ORS returns float metrics; round to nearest integer for domain consistency.
	return ports.RouteResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
		Polyline:        line,
		Legs:            len(segments),
	}, nil
}
