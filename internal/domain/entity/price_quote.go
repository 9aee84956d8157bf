package entity

import "time"

// PriceQuote is the normalized price result produced by a provider adapter
// or by the historical approximation fallback. A quote is never mutated
// after creation; a newer quote simply supersedes it in the cache.
type PriceQuote struct {
	Asset         string    `json:"asset"`
	PriceUSD      float64   `json:"priceUsd"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	ObservedAt    time.Time `json:"observedAt"`
	IsApproximate bool      `json:"isApproximate,omitempty"`
}

// TokenMetadata holds the static descriptive fields of a token.
// The address-to-symbol mapping is effectively immutable, so callers
// cache it long-lived.
type TokenMetadata struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}
