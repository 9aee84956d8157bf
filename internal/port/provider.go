package port

import (
	"context"
	"time"

	"portfolio_tracker/internal/domain/entity"
)

// PriceProvider is the uniform capability wrapper around one external price
// or metadata source. Adapters normalize the provider's response shape into
// entity.PriceQuote at the boundary; the core never branches on
// provider-specific formats.
//
// Asset arguments are combined network:address keys (see entity.AssetKey).
// Failed calls return *entity.ProviderError or entity.ErrUnsupported so the
// resolution engine can classify them.
type PriceProvider interface {
	// ID returns the stable provider identifier used for breaker state,
	// metrics and quote attribution.
	ID() string

	GetPrice(ctx context.Context, asset string) (entity.PriceQuote, error)
	GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, error)
	GetMetadata(ctx context.Context, asset string) (entity.TokenMetadata, error)
}

// CircuitBreaker is the advisory availability gate consulted before every
// provider attempt. It never blocks a call itself; callers must check
// CanRequest first and report the result after.
type CircuitBreaker interface {
	CanRequest(providerID string) bool
	ReportSuccess(providerID string)
	ReportFailure(providerID string)
}
