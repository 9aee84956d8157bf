package entity

// LlamaPriceResponse is the DefiLlama coins API envelope for both the
// current and historical price endpoints.
type LlamaPriceResponse struct {
	Coins map[string]LlamaCoin `json:"coins"`
}

// LlamaCoin is one priced asset keyed by "chain:address".
type LlamaCoin struct {
	Price      float64 `json:"price"`
	Symbol     string  `json:"symbol"`
	Decimals   uint8   `json:"decimals"`
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}
