package mapprovider

import (
	"context"
	"fleet-tracking-service/internal/ports"
)

// Provider joins the ORS lookups with the streaming canvas into one MapProvider.
type Provider struct {
	*ORSClient
	*Canvas
}

var _ ports.MapProvider = (*Provider)(nil)

func New(ors *ORSClient, canvas *Canvas) *Provider {
	return &Provider{ORSClient: ors, Canvas: canvas}
}

// Loader returns a function that builds the provider on mount. A missing
// API key surfaces here, once, as a provider initialization failure.
func Loader(apiKey string, canvas *Canvas, opts ...ORSOption) func(context.Context) (ports.MapProvider, error) {
	return func(ctx context.Context) (ports.MapProvider, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ors, err := NewORSClient(apiKey, opts...)
		if err != nil {
			return nil, err
		}
		return New(ors, canvas), nil
	}
}
