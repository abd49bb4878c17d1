package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type ORSConfig struct {
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"baseURL" validate:"required,url"`
	Profile string `yaml:"profile" validate:"required"`
	Country string `yaml:"country"`
}

type BackendConfig struct {
	Mode  string `yaml:"mode" validate:"oneof=http postgres"`
	URL   string `yaml:"url" validate:"required_if=Mode http,omitempty,url"`
	Token string `yaml:"-"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type FiltersConfig struct {
	VehicleCategory string `yaml:"vehicleCategory" validate:"omitempty,oneof=moto car bicycle van"`
	Availability    string `yaml:"availability" validate:"omitempty,oneof=all available busy offline"`
}

// TrackingConfig holds the options exposed to the surrounding application.
type TrackingConfig struct {
	AutoRefresh       bool          `yaml:"autoRefresh"`
	RefreshIntervalMS int           `yaml:"refreshIntervalMS" validate:"gte=1000"`
	OrdersPageSize    int           `yaml:"ordersPageSize" validate:"gt=0,lte=500"`
	Filters           FiltersConfig `yaml:"filters"`
}

type Config struct {
	Port         string         `yaml:"port" validate:"required,numeric"`
	DatabaseURL  string         `yaml:"-"`
	GeocodeStore string         `yaml:"geocodeStore" validate:"oneof=memory postgres redis"`
	SeedPath     string         `yaml:"seedPath"`
	ORS          ORSConfig      `yaml:"ors"`
	Backend      BackendConfig  `yaml:"backend"`
	Redis        RedisConfig    `yaml:"redis"`
	Tracking     TrackingConfig `yaml:"tracking"`
}

func defaults() Config {
	return Config{
		Port:         "8080",
		GeocodeStore: "memory",
		SeedPath:     "data/seeds/fleet.json",
		ORS: ORSConfig{
			BaseURL: "https://api.openrouteservice.org",
			Profile: "driving-car",
		},
		Backend: BackendConfig{Mode: "http"},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Tracking: TrackingConfig{
			AutoRefresh:       true,
			RefreshIntervalMS: 15000,
			OrdersPageSize:    100,
			Filters:           FiltersConfig{Availability: "all"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (TRACKER_CONFIG, default tracker.yml) and environment variables, in that
// order of precedence, then validates it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg := defaults()

	path := Get("TRACKER_CONFIG", "tracker.yml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = Get("PORT", cfg.Port)
	cfg.DatabaseURL = Get("DATABASE_URL", cfg.DatabaseURL)
	cfg.GeocodeStore = Get("GEOCODE_STORE", cfg.GeocodeStore)
	cfg.SeedPath = Get("SEED_PATH", cfg.SeedPath)

	cfg.ORS.APIKey = strings.TrimSpace(os.Getenv("ORS_API_KEY"))
	cfg.ORS.BaseURL = Get("ORS_BASE_URL", cfg.ORS.BaseURL)

	cfg.Backend.Mode = Get("BACKEND_MODE", cfg.Backend.Mode)
	cfg.Backend.URL = Get("BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.Token = os.Getenv("BACKEND_TOKEN")

	cfg.Redis.Addr = Get("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &cfg.Redis.DB},
		{"REFRESH_INTERVAL_MS", &cfg.Tracking.RefreshIntervalMS},
		{"ORDERS_PAGE_SIZE", &cfg.Tracking.OrdersPageSize},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", it.key, err)
		}
		*it.dst = n
	}

	if v := os.Getenv("AUTO_REFRESH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env AUTO_REFRESH: %w", err)
		}
		cfg.Tracking.AutoRefresh = b
	}

	if v := os.Getenv("VEHICLE_FILTER"); v != "" {
		cfg.Tracking.Filters.VehicleCategory = v
	}
	if v := os.Getenv("AVAILABILITY_FILTER"); v != "" {
		cfg.Tracking.Filters.Availability = v
	}

	return nil
}

// Validate checks struct tags plus the rules that span sections.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	needsDB := cfg.Backend.Mode == "postgres" || cfg.GeocodeStore == "postgres"
	if needsDB && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required for postgres backend or geocode store")
	}

	if cfg.GeocodeStore == "redis" && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("REDIS_ADDR is required for redis geocode store")
	}

	return nil
}
