package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Postgres-backed implementation of the FleetBackend port.
type PostgresFleetRepository struct{ DB *sql.DB }

var _ ports.FleetBackend = (*PostgresFleetRepository)(nil)

func NewPostgresFleetRepository(db *sql.DB) *PostgresFleetRepository {
	return &PostgresFleetRepository{DB: db}
}

// Return every courier on shift.
func (s *PostgresFleetRepository) ListActiveCouriers(ctx context.Context) (_ []domain.Courier, err error) {
	defer obs.Time(ctx, "repo.ListActiveCouriers")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres fleet repository: DB is nil")
	}

	query := `
	SELECT
		c.courier_id,
		c.name,
		c.phone,
		c.vehicle,
		c.is_active,
		c.lat,
		c.lng,
		c.zones,
		(SELECT count(*) FROM assignments a
			WHERE a.courier_id = c.courier_id
			AND a.status IN ('assigned', 'accepted')) AS assigned_orders
	FROM couriers c
	WHERE c.on_shift
	ORDER BY c.courier_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list couriers: query couriers table: %w", err)
	}
	defer rows.Close()

	couriers := make([]domain.Courier, 0, 64)
	m := pgtype.NewMap()
	for rows.Next() {
		var (
			c        domain.Courier
			vehicle  string
			lat, lng sql.NullFloat64
			zones    []string
			assigned int
		)
		err := rows.Scan(&c.ID, &c.Name, &c.Phone, &vehicle, &c.Active, &lat, &lng, m.SQLScanner(&zones), &assigned)
		if err != nil {
			return nil, fmt.Errorf("list couriers: scan row: %w", err)
		}
		c.Vehicle = domain.VehicleCategory(vehicle)
		c.Zones = zones
		c.AssignedOrders = assigned
		if lat.Valid && lng.Valid {
			c.Position = &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		couriers = append(couriers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list couriers: row iteration: %w", err)
	}

	return couriers, nil
}

// Return the oldest pageSize orders in the given status.
func (s *PostgresFleetRepository) ListOrders(
	ctx context.Context,
	status domain.OrderStatus,
	pageSize int,
) (_ []domain.DeliveryOrder, err error) {
	defer obs.Time(ctx, "repo.ListOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres fleet repository: DB is nil")
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("list orders: page size must be positive, got %d", pageSize)
	}

	query := `
	SELECT order_id, status, address, customer_name, amount
	FROM orders
	WHERE status = $1
	ORDER BY created_at, order_id
	LIMIT $2;
	`
	rows, err := s.DB.QueryContext(ctx, query, string(status), pageSize)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.DeliveryOrder, 0, pageSize)
	for rows.Next() {
		var o domain.DeliveryOrder
		var st string
		if err := rows.Scan(&o.ID, &st, &o.Address, &o.CustomerName, &o.Amount); err != nil {
			return nil, fmt.Errorf("list orders: scan row: %w", err)
		}
		o.Status = domain.OrderStatus(st)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}

	return orders, nil
}

// Return assignments for one order, oldest first.
func (s *PostgresFleetRepository) ListAssignmentsForOrder(ctx context.Context, orderID string) ([]domain.Assignment, error) {
	if s.DB == nil {
		return nil, errors.New("postgres fleet repository: DB is nil")
	}

	query := `
	SELECT assignment_id, order_id, courier_id, status, assigned_at
	FROM assignments
	WHERE order_id = $1
	ORDER BY assigned_at, assignment_id;
	`
	rows, err := s.DB.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list assignments order_id=%s: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		var st string
		var at time.Time
		if err := rows.Scan(&a.ID, &a.OrderID, &a.CourierID, &st, &at); err != nil {
			return nil, fmt.Errorf("list assignments order_id=%s: scan row: %w", orderID, err)
		}
		a.Status = domain.AssignmentStatus(st)
		a.AssignedAt = at
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignments order_id=%s: row iteration: %w", orderID, err)
	}

	return out, nil
}
