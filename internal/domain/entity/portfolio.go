package entity

import "time"

// Collector run outcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// PositionKind classifies a position record by the platform type that
// produced it.
type PositionKind string

const (
	PositionNative  PositionKind = "native"
	PositionToken   PositionKind = "token"
	PositionStaking PositionKind = "staking"
	PositionNFT     PositionKind = "nft"
)

// PositionRecord is a single valued holding contributed by a collector.
// The orchestrator only ever reads ValueUSD from it; everything else is
// pass-through to the API consumer.
type PositionRecord struct {
	CollectorID      string       `json:"collectorId"`
	Network          string       `json:"network"`
	Kind             PositionKind `json:"kind"`
	TokenAddress     string       `json:"tokenAddress,omitempty"`
	TokenSymbol      string       `json:"tokenSymbol"`
	Decimals         uint8        `json:"decimals"`
	FormattedBalance string       `json:"formattedBalance"`
	PriceUSD         float64      `json:"priceUsd"`
	ValueUSD         float64      `json:"valueUsd"`
	PriceApproximate bool         `json:"priceApproximate,omitempty"`
}

// CollectorOutcome records how a single collector invocation went within
// one orchestration run. Produced exactly once per collector per run.
type CollectorOutcome struct {
	CollectorID string `json:"collectorId"`
	Status      string `json:"status"`
	DurationMs  int64  `json:"durationMs"`
	ItemCount   int    `json:"itemCount"`
	Error       string `json:"error,omitempty"`
}

// PortfolioSnapshot is the complete aggregated result of one orchestration
// run. It is assembled only after every collector has settled; there is no
// partial delivery.
type PortfolioSnapshot struct {
	Owner         string                      `json:"owner"`
	CapturedAt    time.Time                   `json:"capturedAt"`
	TotalValueUSD float64                     `json:"totalValueUsd"`
	Elements      []PositionRecord            `json:"elements"`
	Report        map[string]CollectorOutcome `json:"report"`
	DurationMs    int64                       `json:"durationMs"`
}
