package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yml")
	yml := `
port: "9090"
backend:
  mode: http
  url: http://backend.local/api
tracking:
  autoRefresh: false
  refreshIntervalMS: 30000
  ordersPageSize: 50
  filters:
    vehicleCategory: moto
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("TRACKER_CONFIG", path)
	t.Setenv("REFRESH_INTERVAL_MS", "5000")
	t.Setenv("ORS_API_KEY", " key ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.Tracking.RefreshIntervalMS != 5000 {
		t.Errorf("refresh interval = %d, want env override 5000", cfg.Tracking.RefreshIntervalMS)
	}
	if cfg.Tracking.AutoRefresh {
		t.Errorf("auto refresh should come from yaml (false)")
	}
	if cfg.Tracking.Filters.VehicleCategory != "moto" {
		t.Errorf("vehicle filter = %q, want moto", cfg.Tracking.Filters.VehicleCategory)
	}
	if cfg.Tracking.Filters.Availability != "all" {
		t.Errorf("availability default lost: %q", cfg.Tracking.Filters.Availability)
	}
	if cfg.ORS.APIKey != "key" {
		t.Errorf("api key = %q, want trimmed", cfg.ORS.APIKey)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend mode", func(c *Config) { c.Backend.Mode = "grpc" }},
		{"http backend without url", func(c *Config) { c.Backend.URL = "" }},
		{"postgres backend without database", func(c *Config) { c.Backend.Mode = "postgres" }},
		{"refresh too fast", func(c *Config) { c.Tracking.RefreshIntervalMS = 10 }},
		{"unknown vehicle filter", func(c *Config) { c.Tracking.Filters.VehicleCategory = "boat" }},
		{"redis store without addr", func(c *Config) { c.GeocodeStore = "redis"; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Backend.URL = "http://backend.local"
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	ok := defaults()
	ok.Backend.URL = "http://backend.local"
	if err := Validate(ok); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
