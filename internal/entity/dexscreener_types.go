package entity

// PairData is one trading pair as returned by the DEX Screener tokens
// endpoint.
type PairData struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   DEXToken      `json:"baseToken"`
	QuoteToken  DEXToken      `json:"quoteToken"`
	PriceUsd    string        `json:"priceUsd"`
	Liquidity   *DEXLiquidity `json:"liquidity"`
}

// DEXToken identifies one side of a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity is the pooled liquidity of a pair. Pointer in PairData to
// survive null responses.
type DEXLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
