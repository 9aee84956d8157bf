package port

import (
	"context"
	"time"

	"portfolio_tracker/internal/domain/entity"
)

// PriceService resolves current and historical USD prices for assets.
// Absence (ok == false) means "no price available now" and is not an error;
// callers value the position at zero rather than failing.
type PriceService interface {
	GetCurrentPrice(ctx context.Context, asset string) (entity.PriceQuote, bool)
	GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, bool)
	// GetTokenMetadata resolves the effectively-static symbol/name/decimals
	// mapping for an asset, cached long-lived.
	GetTokenMetadata(ctx context.Context, asset string) (entity.TokenMetadata, bool)
}

// Collector produces position records of one platform/position type for an
// owner address. Internal partial failures are swallowed and mapped to a
// smaller result; a returned error means the collector produced nothing and
// is recorded as such by the orchestrator, never aborting the run.
type Collector interface {
	ID() string
	Execute(ctx context.Context, owner string) ([]entity.PositionRecord, error)
}

// Orchestrator runs all registered collectors for an owner and assembles
// the merged snapshot once every collector has settled.
type Orchestrator interface {
	Run(ctx context.Context, owner string) (*entity.PortfolioSnapshot, error)
}
