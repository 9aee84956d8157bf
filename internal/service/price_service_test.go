package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

// fakeCache is a value-copying in-memory cache for tests.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string, dst any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c *fakeCache) Set(key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
}

func (c *fakeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// fakeBreaker permits everything unless a provider id is denied, and counts
// the reports it receives.
type fakeBreaker struct {
	mu        sync.Mutex
	denied    map[string]bool
	successes map[string]int
	failures  map[string]int
}

func newFakeBreaker() *fakeBreaker {
	return &fakeBreaker{
		denied:    make(map[string]bool),
		successes: make(map[string]int),
		failures:  make(map[string]int),
	}
}

func (b *fakeBreaker) CanRequest(providerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.denied[providerID]
}

func (b *fakeBreaker) ReportSuccess(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes[providerID]++
}

func (b *fakeBreaker) ReportFailure(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[providerID]++
}

// fakeProvider scripts each capability and counts invocations.
type fakeProvider struct {
	id        string
	mu        sync.Mutex
	calls     int
	priceFn   func() (entity.PriceQuote, error)
	histFn    func() (entity.PriceQuote, error)
	metaFn    func() (entity.TokenMetadata, error)
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) GetPrice(ctx context.Context, asset string) (entity.PriceQuote, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.priceFn == nil {
		return entity.PriceQuote{}, fmt.Errorf("no price scripted")
	}
	return p.priceFn()
}

func (p *fakeProvider) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.histFn == nil {
		return entity.PriceQuote{}, entity.ErrUnsupported
	}
	return p.histFn()
}

func (p *fakeProvider) GetMetadata(ctx context.Context, asset string) (entity.TokenMetadata, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.metaFn == nil {
		return entity.TokenMetadata{}, fmt.Errorf("no metadata scripted")
	}
	return p.metaFn()
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func goodQuote(source string, price float64) func() (entity.PriceQuote, error) {
	return func() (entity.PriceQuote, error) {
		return entity.PriceQuote{
			Asset:      "ethereum:0xabc",
			PriceUSD:   price,
			Confidence: 0.9,
			Source:     source,
			ObservedAt: time.Now(),
		}, nil
	}
}

func newTestPriceService(providers []*fakeProvider, cache *fakeCache, breaker *fakeBreaker, cfg PriceServiceConfig) *priceServiceImpl {
	ports := make([]port.PriceProvider, len(providers))
	for i, p := range providers {
		ports[i] = p
	}
	svc := NewPriceService(ports, cache, breaker, cfg, zap.NewNop()).(*priceServiceImpl)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func TestPriceServiceCascadeFallsThrough(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: func() (entity.PriceQuote, error) {
		return entity.PriceQuote{}, &entity.ProviderError{Provider: "p1", Retryable: false, Err: fmt.Errorf("down")}
	}}
	p2 := &fakeProvider{id: "p2", priceFn: goodQuote("p2", 42)}
	breaker := newFakeBreaker()
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), breaker, PriceServiceConfig{})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "p2", quote.Source)
	assert.Equal(t, 42.0, quote.PriceUSD)
	assert.Equal(t, 1, breaker.failures["p1"])
	assert.Equal(t, 1, breaker.successes["p2"])
}

func TestPriceServiceSuccessShortCircuitsCascade(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	p2 := &fakeProvider{id: "p2", priceFn: goodQuote("p2", 20)}
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "p1", quote.Source)
	assert.Equal(t, 0, p2.callCount(), "later providers must not be contacted after a success")
}

func TestPriceServiceHandlesSubSecondCacheTTL(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{
		CacheTTL: 500 * time.Millisecond,
	})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, 10.0, quote.PriceUSD)
}

func TestPriceServiceCacheAvoidsRepeatCalls(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{CacheTTL: time.Hour})

	_, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	_, ok = svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, 1, p1.callCount(), "second lookup must be cache-served")
}

func TestPriceServiceBreakerSkipsProviderWithoutPenalty(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	p2 := &fakeProvider{id: "p2", priceFn: goodQuote("p2", 20)}
	breaker := newFakeBreaker()
	breaker.denied["p1"] = true
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), breaker, PriceServiceConfig{})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "p2", quote.Source)
	assert.Equal(t, 0, p1.callCount(), "a provider rejected by its breaker must not be contacted")
	assert.Equal(t, 0, breaker.failures["p1"], "a breaker skip is not a provider failure")
}

func TestPriceServiceNonPositivePriceCountsAsFailure(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 0)}
	p2 := &fakeProvider{id: "p2", priceFn: goodQuote("p2", 20)}
	breaker := newFakeBreaker()
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), breaker, PriceServiceConfig{})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "p2", quote.Source)
	assert.Equal(t, 1, breaker.failures["p1"])
}

func TestPriceServiceExhaustionIsAbsenceNotError(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: func() (entity.PriceQuote, error) {
		return entity.PriceQuote{}, &entity.ProviderError{Provider: "p1", Err: fmt.Errorf("down")}
	}}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{MaxAttempts: 1})

	_, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	assert.False(t, ok)
}

func TestPriceServiceRetriesTransientFailures(t *testing.T) {
	attempts := 0
	p1 := &fakeProvider{id: "p1"}
	p1.priceFn = func() (entity.PriceQuote, error) {
		attempts++
		if attempts < 3 {
			return entity.PriceQuote{}, &entity.ProviderError{Provider: "p1", StatusCode: 503, Retryable: true, Err: fmt.Errorf("unavailable")}
		}
		return goodQuote("p1", 10)()
	}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{MaxAttempts: 3})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, 10.0, quote.PriceUSD)
	assert.Equal(t, 3, p1.callCount())
}

func TestPriceServiceDoesNotRetryPermanentFailures(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: func() (entity.PriceQuote, error) {
		return entity.PriceQuote{}, &entity.ProviderError{Provider: "p1", StatusCode: 404, Retryable: false, Err: fmt.Errorf("not found")}
	}}
	p2 := &fakeProvider{id: "p2", priceFn: goodQuote("p2", 20)}
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{MaxAttempts: 5})

	quote, ok := svc.GetCurrentPrice(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "p2", quote.Source)
	assert.Equal(t, 1, p1.callCount(), "permanent failures must not burn retry attempts")
}

func TestPriceServiceHistoricalApproximationFallsBackToCurrent(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	cache := newFakeCache()
	svc := newTestPriceService([]*fakeProvider{p1}, cache, newFakeBreaker(), PriceServiceConfig{
		AllowApproximateHistorical: true,
	})

	at := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	quote, ok := svc.GetHistoricalPrice(context.Background(), "ethereum:0xabc", at)
	require.True(t, ok)
	assert.True(t, quote.IsApproximate, "a substituted current price must be tagged approximate")
	assert.Equal(t, 10.0, quote.PriceUSD)

	// The approximation is cached under the historical key; a repeat lookup
	// is cache-served.
	calls := p1.callCount()
	again, ok := svc.GetHistoricalPrice(context.Background(), "ethereum:0xabc", at)
	require.True(t, ok)
	assert.True(t, again.IsApproximate)
	assert.Equal(t, calls, p1.callCount())
}

func TestPriceServiceHistoricalApproximationCanBeDisabled(t *testing.T) {
	p1 := &fakeProvider{id: "p1", priceFn: goodQuote("p1", 10)}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{
		AllowApproximateHistorical: false,
	})

	_, ok := svc.GetHistoricalPrice(context.Background(), "ethereum:0xabc", time.Now().Add(-24*time.Hour))
	assert.False(t, ok)
}

func TestPriceServiceExactHistoricalIsNotApproximate(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	p1 := &fakeProvider{id: "p1", histFn: func() (entity.PriceQuote, error) {
		return entity.PriceQuote{Asset: "ethereum:0xabc", PriceUSD: 7, Source: "p1", ObservedAt: at}, nil
	}}
	svc := newTestPriceService([]*fakeProvider{p1}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{
		AllowApproximateHistorical: true,
	})

	quote, ok := svc.GetHistoricalPrice(context.Background(), "ethereum:0xabc", at)
	require.True(t, ok)
	assert.False(t, quote.IsApproximate)
	assert.Equal(t, 7.0, quote.PriceUSD)
}

func TestPriceServiceMetadataCascadeAndCache(t *testing.T) {
	p1 := &fakeProvider{id: "p1", metaFn: func() (entity.TokenMetadata, error) {
		return entity.TokenMetadata{}, fmt.Errorf("down")
	}}
	p2 := &fakeProvider{id: "p2", metaFn: func() (entity.TokenMetadata, error) {
		return entity.TokenMetadata{Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18}, nil
	}}
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), newFakeBreaker(), PriceServiceConfig{MaxAttempts: 1})

	md, ok := svc.GetTokenMetadata(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "WETH", md.Symbol)

	calls := p2.callCount()
	_, ok = svc.GetTokenMetadata(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, calls, p2.callCount(), "metadata repeat lookups must be cache-served")
}

func TestPriceServiceMetadataUnsupportedIsNotAFailure(t *testing.T) {
	p1 := &fakeProvider{id: "p1", metaFn: func() (entity.TokenMetadata, error) {
		return entity.TokenMetadata{}, entity.ErrUnsupported
	}}
	p2 := &fakeProvider{id: "p2", metaFn: func() (entity.TokenMetadata, error) {
		return entity.TokenMetadata{Symbol: "WETH", Decimals: 18}, nil
	}}
	breaker := newFakeBreaker()
	svc := newTestPriceService([]*fakeProvider{p1, p2}, newFakeCache(), breaker, PriceServiceConfig{})

	md, ok := svc.GetTokenMetadata(context.Background(), "ethereum:0xabc")
	require.True(t, ok)
	assert.Equal(t, "WETH", md.Symbol)
	assert.Equal(t, 0, breaker.failures["p1"], "an unsupported operation must not count against the provider")
}
