package entity

// GeckoContractInfo is the subset of the CoinGecko contract lookup used for
// metadata and coin-id resolution.
type GeckoContractInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	DetailPlatforms map[string]struct {
		DecimalPlace int `json:"decimal_place"`
	} `json:"detail_platforms"`
}

// GeckoHistoryResponse is the subset of the coin history endpoint carrying
// the day's price.
type GeckoHistoryResponse struct {
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}
