package mapprovider

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// ORSClient implements Geocoder and Router using OpenRouteService.
//
// It performs one external call per request, with retry/backoff for
// transient failures. Caching is the caller's concern.
// The client is safe for concurrent use.
type ORSClient struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
	country string
}

type ORSOption func(*ORSClient)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSClient) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithProfile(p string) ORSOption {
	return func(o *ORSClient) { o.profile = p }
}

// WithCountry restricts geocoding to an ISO country code.
func WithCountry(c string) ORSOption {
	return func(o *ORSClient) { o.country = c }
}

func WithHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSClient) { o.session = c }
}

func NewORSClient(apiKey string, opts ...ORSOption) (*ORSClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	client := &ORSClient{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: "https://api.openrouteservice.org",
		profile: "driving-car",
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.baseURL == "" {
		return nil, errors.New("ORS base url is empty")
	}

	return client, nil
}
