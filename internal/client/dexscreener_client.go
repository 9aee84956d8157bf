package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	dexscreener_entity "portfolio_tracker/internal/entity"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

const dexScreenerID = "dexscreener"

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

var _ port.PriceProvider = (*DEXScreenerClient)(nil)

// DEXScreenerClient adapts the DEX Screener API to the price provider
// capability. DEX Screener serves only spot data, so historical lookups
// report unsupported and the engine falls through to the next provider.
type DEXScreenerClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDEXScreenerClient creates a DEX Screener provider adapter.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DEXScreenerClient {
	return &DEXScreenerClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("DEXScreenerClient"),
	}
}

func (c *DEXScreenerClient) ID() string {
	return dexScreenerID
}

func (c *DEXScreenerClient) GetPrice(ctx context.Context, asset string) (entity.PriceQuote, error) {
	pair, err := c.bestPair(ctx, asset)
	if err != nil {
		return entity.PriceQuote{}, err
	}

	price, err := strconv.ParseFloat(pair.PriceUsd, 64)
	if err != nil {
		return entity.PriceQuote{}, &entity.ProviderError{
			Provider: dexScreenerID,
			Err:      fmt.Errorf("unparseable price %q for %s: %w", pair.PriceUsd, asset, err),
		}
	}

	confidence := 0.7
	if _, isStable := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; isStable {
		confidence = 0.9
	}

	return entity.PriceQuote{
		Asset:      asset,
		PriceUSD:   price,
		Confidence: confidence,
		Source:     dexScreenerID,
		ObservedAt: time.Now(),
	}, nil
}

func (c *DEXScreenerClient) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, error) {
	return entity.PriceQuote{}, entity.ErrUnsupported
}

func (c *DEXScreenerClient) GetMetadata(ctx context.Context, asset string) (entity.TokenMetadata, error) {
	pair, err := c.bestPair(ctx, asset)
	if err != nil {
		return entity.TokenMetadata{}, err
	}
	// DEX Screener does not expose decimals; callers fill them from the
	// token list or another provider.
	return entity.TokenMetadata{
		Symbol: pair.BaseToken.Symbol,
		Name:   pair.BaseToken.Name,
	}, nil
}

// bestPair fetches all pairs for the asset and selects the most trustworthy
// one: stablecoin-quoted pairs win, highest USD liquidity breaks ties.
func (c *DEXScreenerClient) bestPair(ctx context.Context, asset string) (*dexscreener_entity.PairData, error) {
	chain, address, ok := entity.SplitAssetKey(asset)
	if !ok {
		return nil, &entity.ProviderError{Provider: dexScreenerID, Err: fmt.Errorf("malformed asset key %q", asset)}
	}

	url := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, chain, address)
	c.logger.Debug("requesting token pairs", zap.String("url", url))

	body, err := getJSON(ctx, c.client, dexScreenerID, url, c.timeout, nil)
	if err != nil {
		return nil, err
	}

	var pairs []dexscreener_entity.PairData
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, &entity.ProviderError{
			Provider: dexScreenerID,
			Err:      fmt.Errorf("failed to unmarshal pairs response: %w", err),
		}
	}

	var bestOverall, bestStable *dexscreener_entity.PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, address) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		if _, isStable := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; isStable {
			if bestStable == nil || liquidityUSD(pair) > liquidityUSD(bestStable) {
				bestStable = pair
			}
		}
		if bestOverall == nil || liquidityUSD(pair) > liquidityUSD(bestOverall) {
			bestOverall = pair
		}
	}

	if bestStable != nil {
		return bestStable, nil
	}
	if bestOverall != nil {
		return bestOverall, nil
	}

	c.logger.Debug("no usable pair for asset", zap.String("asset", asset), zap.Int("pairCount", len(pairs)))
	return nil, &entity.ProviderError{
		Provider: dexScreenerID,
		Err:      fmt.Errorf("no priced pair for %s", asset),
	}
}

func liquidityUSD(p *dexscreener_entity.PairData) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}
