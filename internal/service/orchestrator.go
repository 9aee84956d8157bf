package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
	"portfolio_tracker/pkg/metrics"
)

// OrchestratorConfig tunes the collector fan-out.
type OrchestratorConfig struct {
	// CollectorTimeout bounds every collector invocation so one hanging
	// ledger or provider call cannot delay the snapshot indefinitely.
	CollectorTimeout time.Duration
	// ResultTTL caches the assembled snapshot per owner.
	ResultTTL time.Duration
	// MaxConcurrent caps simultaneously running collectors; zero means
	// unbounded.
	MaxConcurrent int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.CollectorTimeout <= 0 {
		c.CollectorTimeout = 30 * time.Second
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 2 * time.Minute
	}
}

// orchestratorImpl runs all registered collectors concurrently for an owner
// and merges their position records into one snapshot. Collectors are
// mutually independent: a failure or timeout in one is recorded in the
// per-collector report and contributes nothing, without aborting the run.
type orchestratorImpl struct {
	logger     *zap.Logger
	cache      port.Cache
	collectors []port.Collector
	cfg        OrchestratorConfig
}

// NewOrchestrator creates the fetcher orchestrator over a fixed collector
// set.
func NewOrchestrator(
	collectors []port.Collector,
	cache port.Cache,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) port.Orchestrator {
	cfg.applyDefaults()
	return &orchestratorImpl{
		logger:     logger.Named("Orchestrator"),
		cache:      cache,
		collectors: collectors,
		cfg:        cfg,
	}
}

func walletKey(owner string) string {
	return "wallet:" + strings.ToLower(owner)
}

// Run produces the portfolio snapshot for an owner. The snapshot is
// all-or-nothing: it is assembled only after every collector has settled.
func (o *orchestratorImpl) Run(ctx context.Context, owner string) (*entity.PortfolioSnapshot, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner address is required")
	}

	key := walletKey(owner)
	var cached entity.PortfolioSnapshot
	if o.cache.Get(key, &cached) {
		o.logger.Debug("serving cached snapshot", zap.String("owner", owner))
		return &cached, nil
	}

	o.logger.Info("starting orchestration run",
		zap.String("owner", owner),
		zap.Int("collectors", len(o.collectors)))
	start := time.Now()

	var mu sync.Mutex
	elements := make([]entity.PositionRecord, 0)
	report := make(map[string]entity.CollectorOutcome, len(o.collectors))

	eg, runCtx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrent > 0 {
		eg.SetLimit(o.cfg.MaxConcurrent)
	}

	for _, collector := range o.collectors {
		c := collector
		eg.Go(func() error {
			res := o.runCollector(runCtx, c, owner)

			mu.Lock()
			defer mu.Unlock()
			report[res.outcome.CollectorID] = res.outcome
			elements = append(elements, res.records...)
			// Collector failures are contained here; returning an error
			// would cancel sibling collectors through the group context.
			return nil
		})
	}

	// Fan-in barrier: every collector has settled past this point.
	_ = eg.Wait()

	var totalValue float64
	for _, record := range elements {
		totalValue += record.ValueUSD
	}

	snapshot := &entity.PortfolioSnapshot{
		Owner:         owner,
		CapturedAt:    start,
		TotalValueUSD: totalValue,
		Elements:      elements,
		Report:        report,
		DurationMs:    time.Since(start).Milliseconds(),
	}

	o.cache.Set(key, snapshot, o.cfg.ResultTTL)
	metrics.ObserveSnapshotDuration(time.Since(start).Seconds())
	o.logger.Info("orchestration run complete",
		zap.String("owner", owner),
		zap.Float64("totalValueUsd", totalValue),
		zap.Int("elements", len(elements)),
		zap.Int64("durationMs", snapshot.DurationMs))
	return snapshot, nil
}

type collectorResult struct {
	outcome entity.CollectorOutcome
	records []entity.PositionRecord
}

// runCollector invokes one collector under its timeout and maps whatever
// happens, a panic included, into a CollectorOutcome.
func (o *orchestratorImpl) runCollector(ctx context.Context, c port.Collector, owner string) (result collectorResult) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CollectorTimeout)
	defer cancel()

	start := time.Now()
	result.outcome = entity.CollectorOutcome{CollectorID: c.ID()}

	defer func() {
		if r := recover(); r != nil {
			result.outcome.Status = entity.OutcomeError
			result.outcome.Error = fmt.Sprintf("collector panicked: %v", r)
			result.outcome.DurationMs = time.Since(start).Milliseconds()
			result.records = nil
			metrics.ObserveCollectorDuration(c.ID(), entity.OutcomeError, time.Since(start).Seconds())
			o.logger.Error("collector panicked",
				zap.String("collector", c.ID()),
				zap.String("owner", owner),
				zap.Any("panic", r))
		}
	}()

	records, err := c.Execute(cctx, owner)
	duration := time.Since(start)
	result.outcome.DurationMs = duration.Milliseconds()

	if err != nil {
		result.outcome.Status = entity.OutcomeError
		result.outcome.Error = err.Error()
		metrics.ObserveCollectorDuration(c.ID(), entity.OutcomeError, duration.Seconds())
		o.logger.Warn("collector failed",
			zap.String("collector", c.ID()),
			zap.String("owner", owner),
			zap.Duration("duration", duration),
			zap.Error(err))
		return result
	}

	result.outcome.Status = entity.OutcomeSuccess
	result.outcome.ItemCount = len(records)
	result.records = records
	metrics.ObserveCollectorDuration(c.ID(), entity.OutcomeSuccess, duration.Seconds())
	o.logger.Debug("collector finished",
		zap.String("collector", c.ID()),
		zap.Int("items", len(records)),
		zap.Duration("duration", duration))
	return result
}
