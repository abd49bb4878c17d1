package backend

import (
	"context"
	"fleet-tracking-service/internal/domain"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientDecodesListsAndPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		switch r.URL.Path {
		case "/api/couriers/":
			if r.URL.Query().Get("is_active") != "true" {
				t.Errorf("missing is_active filter")
			}
			w.Write([]byte(`{"count":2,"results":[
				{"id":1,"name":"Ana","vehicle_type":"moto","is_active":true,"current_lat":10.5,"current_lng":-66.9,"zones":[{"id":3,"name":"Centro"}]},
				{"id":2,"name":"Ben","vehicle_type":"car","is_active":false}
			]}`))
		case "/api/orders/":
			if r.URL.Query().Get("status") != "delivering" || r.URL.Query().Get("page_size") != "100" {
				t.Errorf("unexpected order query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`[{"id":7,"status":"delivering","delivery_address":"Av. Urdaneta 5","customer_name":"Eva","total_amount":"12.50"}]`))
		case "/api/orders/7/assignments/":
			w.Write([]byte(`[{"id":9,"order":7,"courier":1,"status":"accepted","assigned_at":"2026-01-01T08:00:00Z"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/api/", "tok", nil)
	ctx := context.Background()

	couriers, err := c.ListActiveCouriers(ctx)
	if err != nil {
		t.Fatalf("couriers: %v", err)
	}
	if len(couriers) != 2 {
		t.Fatalf("got %d couriers", len(couriers))
	}
	if couriers[0].ID != "1" || couriers[0].Position == nil || couriers[0].Zones[0] != "Centro" {
		t.Errorf("courier 1 = %+v", couriers[0])
	}
	if couriers[1].Position != nil || couriers[1].Vehicle != domain.VehicleCar {
		t.Errorf("courier 2 = %+v", couriers[1])
	}

	orders, err := c.ListOrders(ctx, domain.OrderDelivering, 100)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "7" || orders[0].Amount != 12.5 {
		t.Fatalf("orders = %+v", orders)
	}

	as, err := c.ListAssignmentsForOrder(ctx, "7")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(as) != 1 || as[0].CourierID != "1" || as[0].Status != domain.AssignmentAccepted {
		t.Fatalf("assignments = %+v", as)
	}

	if _, err := c.ListAssignmentsForOrder(ctx, "missing"); err == nil {
		t.Fatalf("expected error on 404")
	}
}
