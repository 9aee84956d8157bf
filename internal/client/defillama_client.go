package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	llama_entity "portfolio_tracker/internal/entity"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

const defiLlamaID = "defillama"

var _ port.PriceProvider = (*DefiLlamaClient)(nil)

// DefiLlamaClient adapts the DefiLlama coins API. Its asset keys are
// already "chain:address", the same combined form the engine uses, and it
// is the only default provider with a native historical endpoint.
type DefiLlamaClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDefiLlamaClient creates a DefiLlama provider adapter.
func NewDefiLlamaClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DefiLlamaClient {
	return &DefiLlamaClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("DefiLlamaClient"),
	}
}

func (c *DefiLlamaClient) ID() string {
	return defiLlamaID
}

func (c *DefiLlamaClient) GetPrice(ctx context.Context, asset string) (entity.PriceQuote, error) {
	url := fmt.Sprintf("%s/prices/current/%s", c.baseURL, asset)
	coin, err := c.fetchCoin(ctx, url, asset)
	if err != nil {
		return entity.PriceQuote{}, err
	}

	observed := time.Now()
	if coin.Timestamp > 0 {
		observed = time.Unix(coin.Timestamp, 0)
	}
	return entity.PriceQuote{
		Asset:      asset,
		PriceUSD:   coin.Price,
		Confidence: coin.Confidence,
		Source:     defiLlamaID,
		ObservedAt: observed,
	}, nil
}

func (c *DefiLlamaClient) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, error) {
	url := fmt.Sprintf("%s/prices/historical/%d/%s", c.baseURL, at.Unix(), asset)
	coin, err := c.fetchCoin(ctx, url, asset)
	if err != nil {
		return entity.PriceQuote{}, err
	}

	return entity.PriceQuote{
		Asset:      asset,
		PriceUSD:   coin.Price,
		Confidence: coin.Confidence,
		Source:     defiLlamaID,
		ObservedAt: at,
	}, nil
}

func (c *DefiLlamaClient) GetMetadata(ctx context.Context, asset string) (entity.TokenMetadata, error) {
	url := fmt.Sprintf("%s/prices/current/%s", c.baseURL, asset)
	coin, err := c.fetchCoin(ctx, url, asset)
	if err != nil {
		return entity.TokenMetadata{}, err
	}
	return entity.TokenMetadata{
		Symbol:   coin.Symbol,
		Decimals: coin.Decimals,
	}, nil
}

func (c *DefiLlamaClient) fetchCoin(ctx context.Context, url, asset string) (*llama_entity.LlamaCoin, error) {
	c.logger.Debug("requesting price", zap.String("url", url))

	body, err := getJSON(ctx, c.client, defiLlamaID, url, c.timeout, nil)
	if err != nil {
		return nil, err
	}

	var parsed llama_entity.LlamaPriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &entity.ProviderError{
			Provider: defiLlamaID,
			Err:      fmt.Errorf("failed to unmarshal coins response: %w", err),
		}
	}

	// Response keys preserve the requested casing; match case-insensitively.
	for key, coin := range parsed.Coins {
		if strings.EqualFold(key, asset) {
			c := coin
			return &c, nil
		}
	}
	return nil, &entity.ProviderError{
		Provider: defiLlamaID,
		Err:      fmt.Errorf("no price returned for %s", asset),
	}
}
