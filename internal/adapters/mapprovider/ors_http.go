package mapprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	orsMaxAttempts   = 4
	orsFirstBackoff  = 200 * time.Millisecond
	orsMaxRetryAfter = 5 * time.Second
	// Directions answers carry the full geometry; anything past this is not a route.
	orsMaxBody = 8 << 20
)

// orsRequest describes one ORS endpoint call. The body is kept as bytes so
// every retry sends it again from the start.
type orsRequest struct {
	op     string
	method string
	path   string
	query  url.Values
	body   []byte
}

// orsStatusError is a non-2xx ORS answer. ORS reports failures as
// {"error":{"code":2010,"message":"..."}}; both fields are kept when present.
type orsStatusError struct {
	Status  int
	Code    int
	Message string
}

func (e *orsStatusError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ors status %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ors status %d: %s", e.Status, e.Message)
}

// retryable reports whether the same request may succeed later: the rate
// limit (429) and the gateway-side 5xx answers.
func (e *orsStatusError) retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// call performs r with exponential backoff on transient failures and returns
// the response body. A 404 wraps ports.ErrNotFound: ORS uses it for points
// with nothing routable nearby. On 429 the server's Retry-After is honoured,
// capped at orsMaxRetryAfter.
func (o *ORSClient) call(ctx context.Context, r orsRequest) ([]byte, error) {
	backoff := orsFirstBackoff

	var lastErr error
	for attempt := 1; attempt <= orsMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, wait, err := o.once(ctx, r)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *orsStatusError
		switch {
		case errors.As(err, &se) && se.Status == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w: %v", r.op, ports.ErrNotFound, err)
		case errors.As(err, &se) && se.retryable():
		case isNetError(err):
		default:
			return nil, fmt.Errorf("%s: %w", r.op, err)
		}

		if attempt == orsMaxAttempts {
			break
		}

		timer := time.NewTimer(max(backoff, wait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", r.op, orsMaxAttempts, lastErr)
}

// once sends r a single time. wait is the server's requested delay before
// the next attempt, zero when it gave none.
func (o *ORSClient) once(ctx context.Context, r orsRequest) (body []byte, wait time.Duration, err error) {
	target := o.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		reader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := o.session.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, orsMaxBody))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, retryAfter(resp.Header.Get("Retry-After")), statusError(resp.StatusCode, body)
	}
	return body, 0, nil
}

func statusError(status int, body []byte) *orsStatusError {
	se := &orsStatusError{Status: status}

	var decoded struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &decoded) == nil && (decoded.Error.Code != 0 || decoded.Error.Message != "") {
		se.Code = decoded.Error.Code
		se.Message = decoded.Error.Message
		return se
	}

	msg := bytes.TrimSpace(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	se.Message = string(msg)
	return se
}

// Only the delay-seconds form is used by ORS.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, orsMaxRetryAfter)
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
