package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient implements FleetBackend against the fleet REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ ports.FleetBackend = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *HTTPClient) ListActiveCouriers(ctx context.Context) (_ []domain.Courier, err error) {
	defer obs.Time(ctx, "backend.ListActiveCouriers")(&err)

	var dtos []courierDTO
	if err := c.getList(ctx, "/couriers/", url.Values{"is_active": {"true"}}, &dtos); err != nil {
		return nil, fmt.Errorf("list active couriers: %w", err)
	}

	out := make([]domain.Courier, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *HTTPClient) ListOrders(
	ctx context.Context,
	status domain.OrderStatus,
	pageSize int,
) (_ []domain.DeliveryOrder, err error) {
	defer obs.Time(ctx, "backend.ListOrders")(&err)

	q := url.Values{
		"status":    {string(status)},
		"page_size": {strconv.Itoa(pageSize)},
	}

	var dtos []orderDTO
	if err := c.getList(ctx, "/orders/", q, &dtos); err != nil {
		return nil, fmt.Errorf("list orders status=%s: %w", status, err)
	}

	out := make([]domain.DeliveryOrder, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *HTTPClient) ListAssignmentsForOrder(ctx context.Context, orderID string) ([]domain.Assignment, error) {
	var dtos []assignmentDTO
	path := "/orders/" + url.PathEscape(orderID) + "/assignments/"
	if err := c.getList(ctx, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("list assignments order_id=%s: %w", orderID, err)
	}

	out := make([]domain.Assignment, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// getList decodes either a bare JSON array or a paginated {"results": [...]} body.
func (c *HTTPClient) getList(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty response body")
	}

	if trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		if page.Results == nil {
			return errors.New("decode page: missing results")
		}
		trimmed = page.Results
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}
