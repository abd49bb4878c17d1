package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the Postgres schema for the fleet tables and the geocode store.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createCouriersQuery := `
	CREATE TABLE IF NOT EXISTS couriers (
		courier_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		vehicle TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		on_shift BOOLEAN NOT NULL DEFAULT TRUE,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		zones TEXT[] NOT NULL DEFAULT '{}'
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		address TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createAssignmentsQuery := `
	CREATE TABLE IF NOT EXISTS assignments (
		assignment_id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(order_id),
		courier_id TEXT NOT NULL REFERENCES couriers(courier_id),
		status TEXT NOT NULL,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        address TEXT PRIMARY KEY,
        lat DOUBLE PRECISION NOT NULL,
        lng DOUBLE PRECISION NOT NULL
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_assignments_order
    ON assignments(order_id, assigned_at);
	`

	statements := []string{
		createCouriersQuery,
		createOrdersQuery,
		createAssignmentsQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type CourierSeed struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Vehicle string   `json:"vehicle"`
	Active  bool     `json:"is_active"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Zones   []string `json:"zones"`
}

type OrderSeed struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Address      string  `json:"address"`
	CustomerName string  `json:"customer_name"`
	Amount       float64 `json:"amount"`
}

type AssignmentSeed struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	CourierID string `json:"courier_id"`
	Status    string `json:"status"`
}

type FleetSeed struct {
	Couriers    []CourierSeed    `json:"couriers"`
	Orders      []OrderSeed      `json:"orders"`
	Assignments []AssignmentSeed `json:"assignments"`
}

// Populate the database with fleet data from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed fleet: read %q: %w", jsonPath, err)
	}

	var data FleetSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed fleet: parse json: %w", err)
	}

	if err := validateSeed(data); err != nil {
		return fmt.Errorf("seed fleet: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed fleet: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range data.Couriers {
		zones := c.Zones
		if zones == nil {
			zones = []string{}
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO couriers (courier_id, name, phone, vehicle, is_active, lat, lng, zones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (courier_id) DO UPDATE
		SET name = EXCLUDED.name, phone = EXCLUDED.phone, vehicle = EXCLUDED.vehicle,
			is_active = EXCLUDED.is_active, lat = EXCLUDED.lat, lng = EXCLUDED.lng, zones = EXCLUDED.zones;
		`, c.ID, c.Name, c.Phone, c.Vehicle, c.Active, c.Lat, c.Lng, zones); err != nil {
			return fmt.Errorf("seed fleet: insert courier_id=%s: %w", c.ID, err)
		}
	}

	for _, o := range data.Orders {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, status, address, customer_name, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET status = EXCLUDED.status, address = EXCLUDED.address,
			customer_name = EXCLUDED.customer_name, amount = EXCLUDED.amount;
		`, o.ID, o.Status, o.Address, o.CustomerName, o.Amount); err != nil {
			return fmt.Errorf("seed fleet: insert order_id=%s: %w", o.ID, err)
		}
	}

	for _, a := range data.Assignments {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO assignments (assignment_id, order_id, courier_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (assignment_id) DO UPDATE SET status = EXCLUDED.status;
		`, a.ID, a.OrderID, a.CourierID, a.Status); err != nil {
			return fmt.Errorf("seed fleet: insert assignment_id=%s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed fleet: commit tx: %w", err)
	}

	return nil
}

func validateSeed(data FleetSeed) error {
	for i, c := range data.Couriers {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("courier at index %d: id cannot be empty", i+1)
		}
		if (c.Lat == nil) != (c.Lng == nil) {
			return fmt.Errorf("courier %s: lat and lng must be set together", c.ID)
		}
	}
	for i, o := range data.Orders {
		if strings.TrimSpace(o.ID) == "" {
			return fmt.Errorf("order at index %d: id cannot be empty", i+1)
		}
		if strings.TrimSpace(o.Address) == "" {
			return fmt.Errorf("order %s: address cannot be empty", o.ID)
		}
	}
	for i, a := range data.Assignments {
		if a.ID == "" || a.OrderID == "" || a.CourierID == "" {
			return fmt.Errorf("assignment at index %d: id, order_id and courier_id are required", i+1)
		}
	}
	return nil
}
