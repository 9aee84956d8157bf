package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	gecko_entity "portfolio_tracker/internal/entity"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

const coinGeckoID = "coingecko"

var _ port.PriceProvider = (*CoinGeckoClient)(nil)

// CoinGeckoClient adapts the CoinGecko API. Spot prices are keyed by
// contract address, but the history endpoint is keyed by CoinGecko's own
// coin id, so historical lookups first resolve address to id through the
// contract endpoint. The id mapping is effectively static and memoized for
// the process lifetime.
type CoinGeckoClient struct {
	client          *fasthttp.Client
	baseURL         string
	apiKey          string
	timeout         time.Duration
	logger          *zap.Logger
	platformBySlug  map[string]string
	coinIDsByAsset  sync.Map // asset key -> coin id
}

// NewCoinGeckoClient creates a CoinGecko provider adapter. platformBySlug
// maps network slugs to CoinGecko asset platform ids (e.g. "bsc" ->
// "binance-smart-chain").
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration, platformBySlug map[string]string, logger *zap.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		client:         &fasthttp.Client{},
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		timeout:        timeout,
		logger:         logger.Named("CoinGeckoClient"),
		platformBySlug: platformBySlug,
	}
}

func (c *CoinGeckoClient) ID() string {
	return coinGeckoID
}

func (c *CoinGeckoClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-pro-api-key": c.apiKey}
}

// platformFor maps an asset key to (platform id, contract address).
func (c *CoinGeckoClient) platformFor(asset string) (string, string, error) {
	slug, address, ok := entity.SplitAssetKey(asset)
	if !ok {
		return "", "", &entity.ProviderError{Provider: coinGeckoID, Err: fmt.Errorf("malformed asset key %q", asset)}
	}
	platform, ok := c.platformBySlug[slug]
	if !ok {
		// Most slugs match CoinGecko platform ids directly.
		platform = slug
	}
	return platform, address, nil
}

func (c *CoinGeckoClient) GetPrice(ctx context.Context, asset string) (entity.PriceQuote, error) {
	platform, address, err := c.platformFor(asset)
	if err != nil {
		return entity.PriceQuote{}, err
	}

	url := fmt.Sprintf("%s/api/v3/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd", c.baseURL, platform, address)
	c.logger.Debug("requesting spot price", zap.String("url", url))

	body, err := getJSON(ctx, c.client, coinGeckoID, url, c.timeout, c.headers())
	if err != nil {
		return entity.PriceQuote{}, err
	}

	var parsed map[string]map[string]float64
	if err := json.Unmarshal(body, &parsed); err != nil {
		return entity.PriceQuote{}, &entity.ProviderError{
			Provider: coinGeckoID,
			Err:      fmt.Errorf("failed to unmarshal token_price response: %w", err),
		}
	}

	for addr, prices := range parsed {
		if !strings.EqualFold(addr, address) {
			continue
		}
		if usd, ok := prices["usd"]; ok {
			return entity.PriceQuote{
				Asset:      asset,
				PriceUSD:   usd,
				Confidence: 0.9,
				Source:     coinGeckoID,
				ObservedAt: time.Now(),
			}, nil
		}
	}
	return entity.PriceQuote{}, &entity.ProviderError{
		Provider: coinGeckoID,
		Err:      fmt.Errorf("no usd price returned for %s", asset),
	}
}

func (c *CoinGeckoClient) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, error) {
	coinID, err := c.resolveCoinID(ctx, asset)
	if err != nil {
		return entity.PriceQuote{}, err
	}

	url := fmt.Sprintf("%s/api/v3/coins/%s/history?date=%s&localization=false", c.baseURL, coinID, at.UTC().Format("02-01-2006"))
	c.logger.Debug("requesting historical price", zap.String("url", url))

	body, err := getJSON(ctx, c.client, coinGeckoID, url, c.timeout, c.headers())
	if err != nil {
		return entity.PriceQuote{}, err
	}

	var parsed gecko_entity.GeckoHistoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return entity.PriceQuote{}, &entity.ProviderError{
			Provider: coinGeckoID,
			Err:      fmt.Errorf("failed to unmarshal history response: %w", err),
		}
	}

	usd, ok := parsed.MarketData.CurrentPrice["usd"]
	if !ok {
		return entity.PriceQuote{}, &entity.ProviderError{
			Provider: coinGeckoID,
			Err:      fmt.Errorf("no historical usd price for %s at %s", asset, at.Format(time.DateOnly)),
		}
	}

	return entity.PriceQuote{
		Asset:      asset,
		PriceUSD:   usd,
		Confidence: 0.9,
		Source:     coinGeckoID,
		ObservedAt: at,
	}, nil
}

func (c *CoinGeckoClient) GetMetadata(ctx context.Context, asset string) (entity.TokenMetadata, error) {
	info, err := c.contractInfo(ctx, asset)
	if err != nil {
		return entity.TokenMetadata{}, err
	}

	platform, _, _ := c.platformFor(asset)
	var decimals uint8
	if detail, ok := info.DetailPlatforms[platform]; ok && detail.DecimalPlace > 0 && detail.DecimalPlace <= 255 {
		decimals = uint8(detail.DecimalPlace)
	}
	return entity.TokenMetadata{
		Symbol:   strings.ToUpper(info.Symbol),
		Name:     info.Name,
		Decimals: decimals,
	}, nil
}

// resolveCoinID maps an asset key to CoinGecko's coin id via the contract
// lookup endpoint, memoizing the result.
func (c *CoinGeckoClient) resolveCoinID(ctx context.Context, asset string) (string, error) {
	if cached, ok := c.coinIDsByAsset.Load(asset); ok {
		return cached.(string), nil
	}

	info, err := c.contractInfo(ctx, asset)
	if err != nil {
		return "", err
	}
	if info.ID == "" {
		return "", &entity.ProviderError{
			Provider: coinGeckoID,
			Err:      fmt.Errorf("contract lookup returned no coin id for %s", asset),
		}
	}

	c.coinIDsByAsset.Store(asset, info.ID)
	return info.ID, nil
}

func (c *CoinGeckoClient) contractInfo(ctx context.Context, asset string) (*gecko_entity.GeckoContractInfo, error) {
	platform, address, err := c.platformFor(asset)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v3/coins/%s/contract/%s", c.baseURL, platform, address)
	body, err := getJSON(ctx, c.client, coinGeckoID, url, c.timeout, c.headers())
	if err != nil {
		return nil, err
	}

	var info gecko_entity.GeckoContractInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &entity.ProviderError{
			Provider: coinGeckoID,
			Err:      fmt.Errorf("failed to unmarshal contract response: %w", err),
		}
	}
	return &info, nil
}
