package mapprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestORSGeocode(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "k" {
			t.Errorf("missing api key header")
		}
		gotText = r.URL.Query().Get("text")
		if gotText == "nowhere" {
			w.Write([]byte(`{"features":[]}`))
			return
		}
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-112.07,33.45]}}]}`))
	}))
	defer srv.Close()

	c, err := NewORSClient("k", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	got, err := c.Geocode(context.Background(), "  1 Main St ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != "  1 Main St " {
		t.Errorf("address was altered before sending: %q", gotText)
	}
	if got != (domain.Coordinates{Lat: 33.45, Lng: -112.07}) {
		t.Errorf("coords = %+v", got)
	}

	if _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestORSComputeRoute(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/v2/directions/driving-car/geojson" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("content type = %q", ct)
		}
		var req directionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(req.Coordinates) != 2 || req.Coordinates[0][0] != 1 || req.Coordinates[0][1] != 2 {
			t.Errorf("coordinates = %v, want [lng, lat] pairs", req.Coordinates)
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature",
			"geometry":{"type":"LineString","coordinates":[[1,2],[1.5,2.5],[3,4]]},
			"properties":{"summary":{"distance":1234.6,"duration":300.2},"segments":[{}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewORSClient("k", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res, err := c.ComputeRoute(context.Background(), domain.Coordinates{Lat: 2, Lng: 1}, domain.Coordinates{Lat: 4, Lng: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want retry after 503", calls.Load())
	}
	if res.DistanceMeters != 1235 || res.DurationSeconds != 300 {
		t.Errorf("metrics = %d m %d s", res.DistanceMeters, res.DurationSeconds)
	}
	if len(res.Polyline) != 3 || res.Legs != 1 {
		t.Errorf("polyline=%v legs=%d", res.Polyline, res.Legs)
	}
}

func TestORSComputeRouteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":2010}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewORSClient("k", WithBaseURL(srv.URL))
	_, err := c.ComputeRoute(context.Background(), domain.Coordinates{}, domain.Coordinates{Lat: 1, Lng: 1})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestORSHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":{"code":429,"message":"Rate limit exceeded"}}`, http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[1,2]}}]}`))
	}))
	defer srv.Close()

	c, _ := NewORSClient("k", WithBaseURL(srv.URL))
	start := time.Now()
	if _, err := c.Geocode(context.Background(), "1 Main St"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waited := time.Since(start)
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if waited < time.Second {
		t.Errorf("retried after %s, want at least the 1s Retry-After", waited)
	}
}

func TestORSDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":2003,"message":"Parameter 'coordinates' has incorrect value"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewORSClient("k", WithBaseURL(srv.URL))
	_, err := c.ComputeRoute(context.Background(), domain.Coordinates{}, domain.Coordinates{Lat: 1, Lng: 1})

	var se *orsStatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest || se.Code != 2003 {
		t.Fatalf("err = %v, want decoded 400", err)
	}
	if errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("400 must not read as not found")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, client errors are not retried", calls.Load())
	}
}

func TestNewORSClientRequiresKey(t *testing.T) {
	if _, err := NewORSClient(" "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
