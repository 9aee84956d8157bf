package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
	"portfolio_tracker/pkg/metrics"
)

// PriceServiceConfig tunes the resolution engine.
type PriceServiceConfig struct {
	// CacheTTL bounds freshness of current prices and doubles as the time
	// bucket width for cache keys.
	CacheTTL time.Duration
	// HistoricalTTL caches exact historical quotes; history does not change,
	// so this is long.
	HistoricalTTL time.Duration
	// ApproximateTTL caches approximated historical quotes briefly, so a
	// later call can be revisited with a real result.
	ApproximateTTL time.Duration
	// MetadataTTL caches the effectively-static token metadata.
	MetadataTTL time.Duration
	// AllowApproximateHistorical substitutes the current price when no
	// provider has an exact historical quote.
	AllowApproximateHistorical bool
	// MaxAttempts caps retries of transient failures within one provider.
	MaxAttempts int
	// RetryBaseDelay is the first backoff step; subsequent steps double.
	RetryBaseDelay time.Duration
}

func (c *PriceServiceConfig) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.HistoricalTTL <= 0 {
		c.HistoricalTTL = 24 * time.Hour
	}
	if c.ApproximateTTL <= 0 {
		c.ApproximateTTL = 5 * time.Minute
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = 24 * time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
}

// priceServiceImpl resolves prices by trying providers in a fixed priority
// order, consulting the circuit breaker before each attempt and writing
// successful quotes through to the cache. Exhaustion of all providers is
// absence, not an error.
type priceServiceImpl struct {
	logger    *zap.Logger
	cache     port.Cache
	breaker   port.CircuitBreaker
	providers []port.PriceProvider
	cfg       PriceServiceConfig

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPriceService creates the resolution engine over an ordered provider
// list. Earlier providers are preferred; a success short-circuits the rest.
func NewPriceService(
	providers []port.PriceProvider,
	cache port.Cache,
	breaker port.CircuitBreaker,
	cfg PriceServiceConfig,
	logger *zap.Logger,
) port.PriceService {
	cfg.applyDefaults()
	return &priceServiceImpl{
		logger:    logger.Named("PriceService"),
		cache:     cache,
		breaker:   breaker,
		providers: providers,
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// currentPriceKey buckets time by the cache TTL so repeated calls within
// one bucket are cache-served without any provider call. Bucketing is in
// nanoseconds so sub-second TTLs divide cleanly.
func (s *priceServiceImpl) currentPriceKey(asset string) string {
	bucket := time.Now().UnixNano() / int64(s.cfg.CacheTTL)
	return fmt.Sprintf("price:%s:%d", asset, bucket)
}

func historicalPriceKey(asset string, at time.Time) string {
	return fmt.Sprintf("histprice:%s:%d", asset, at.Truncate(time.Hour).Unix())
}

func metadataKey(asset string) string {
	return "metadata:" + asset
}

func (s *priceServiceImpl) GetCurrentPrice(ctx context.Context, asset string) (entity.PriceQuote, bool) {
	key := s.currentPriceKey(asset)

	var cached entity.PriceQuote
	if s.cache.Get(key, &cached) {
		return cached, true
	}

	quote, ok := s.resolve(ctx, asset, func(p port.PriceProvider) (entity.PriceQuote, error) {
		return p.GetPrice(ctx, asset)
	})
	if !ok {
		return entity.PriceQuote{}, false
	}

	s.cache.Set(key, quote, s.cfg.CacheTTL)
	return quote, true
}

func (s *priceServiceImpl) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, bool) {
	key := historicalPriceKey(asset, at)

	var cached entity.PriceQuote
	if s.cache.Get(key, &cached) {
		return cached, true
	}

	quote, ok := s.resolve(ctx, asset, func(p port.PriceProvider) (entity.PriceQuote, error) {
		return p.GetHistoricalPrice(ctx, asset, at)
	})
	if ok {
		s.cache.Set(key, quote, s.cfg.HistoricalTTL)
		return quote, true
	}

	if !s.cfg.AllowApproximateHistorical {
		return entity.PriceQuote{}, false
	}

	// No provider has an exact quote; substitute the current price, tagged
	// as approximate and cached briefly so a later exact result can replace
	// it.
	current, ok := s.GetCurrentPrice(ctx, asset)
	if !ok {
		return entity.PriceQuote{}, false
	}
	approx := current
	approx.IsApproximate = true
	s.cache.Set(key, approx, s.cfg.ApproximateTTL)
	s.logger.Debug("approximated historical price from current",
		zap.String("asset", asset),
		zap.Time("requestedAt", at),
		zap.Float64("priceUsd", approx.PriceUSD))
	return approx, true
}

func (s *priceServiceImpl) GetTokenMetadata(ctx context.Context, asset string) (entity.TokenMetadata, bool) {
	key := metadataKey(asset)

	var cached entity.TokenMetadata
	if s.cache.Get(key, &cached) {
		return cached, true
	}

	for _, provider := range s.providers {
		id := provider.ID()
		if !s.breaker.CanRequest(id) {
			metrics.IncProviderRequest(id, "skipped")
			continue
		}

		md, err := withRetry(ctx, s, id, func() (entity.TokenMetadata, error) {
			return provider.GetMetadata(ctx, asset)
		})
		if errors.Is(err, entity.ErrUnsupported) {
			metrics.IncProviderRequest(id, "unsupported")
			continue
		}
		if err != nil || md.Symbol == "" {
			s.breaker.ReportFailure(id)
			metrics.IncProviderRequest(id, "failure")
			s.logger.Debug("metadata lookup failed",
				zap.String("provider", id), zap.String("asset", asset), zap.Error(err))
			continue
		}

		s.breaker.ReportSuccess(id)
		metrics.IncProviderRequest(id, "success")
		s.cache.Set(key, md, s.cfg.MetadataTTL)
		return md, true
	}
	return entity.TokenMetadata{}, false
}

// resolve runs the provider cascade for one quote. A provider whose breaker
// rejects the call is skipped without counting as a failure; a quote with a
// non-positive price counts as one.
func (s *priceServiceImpl) resolve(ctx context.Context, asset string, call func(port.PriceProvider) (entity.PriceQuote, error)) (entity.PriceQuote, bool) {
	for _, provider := range s.providers {
		id := provider.ID()
		if !s.breaker.CanRequest(id) {
			metrics.IncProviderRequest(id, "skipped")
			s.logger.Debug("provider skipped by breaker", zap.String("provider", id), zap.String("asset", asset))
			continue
		}

		quote, err := withRetry(ctx, s, id, func() (entity.PriceQuote, error) {
			return call(provider)
		})
		if errors.Is(err, entity.ErrUnsupported) {
			// Not offering an operation is not a provider fault.
			metrics.IncProviderRequest(id, "unsupported")
			continue
		}
		if err != nil || quote.PriceUSD <= 0 {
			s.breaker.ReportFailure(id)
			metrics.IncProviderRequest(id, "failure")
			s.logger.Debug("provider attempt failed",
				zap.String("provider", id),
				zap.String("asset", asset),
				zap.Float64("priceUsd", quote.PriceUSD),
				zap.Error(err))
			continue
		}

		s.breaker.ReportSuccess(id)
		metrics.IncProviderRequest(id, "success")
		return quote, true
	}

	s.logger.Debug("all providers failed or skipped", zap.String("asset", asset))
	return entity.PriceQuote{}, false
}

// withRetry retries transient failures with exponential backoff up to the
// attempt cap. Permanent failures short-circuit immediately.
func withRetry[T any](ctx context.Context, s *priceServiceImpl, providerID string, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := s.cfg.RetryBaseDelay

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return zero, err
			}
			delay *= 2
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !entity.IsRetryable(err) {
			s.logger.Debug("permanent provider failure, not retrying",
				zap.String("provider", providerID), zap.Error(err))
			return zero, err
		}
	}
	return zero, lastErr
}
