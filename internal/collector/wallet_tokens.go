package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
	"portfolio_tracker/internal/port"
)

var _ port.Collector = (*WalletTokensCollector)(nil)

// WalletTokensCollector lists the owner's tracked ERC-20 balances on one
// network and values them through the price service. Balance batches that
// fail are logged and skipped; a price that cannot be resolved values the
// position at zero rather than failing the collector.
type WalletTokensCollector struct {
	network   entity.NetworkDefinition
	ledger    port.LedgerClientProvider
	prices    port.PriceService
	tokens    []entity.TokenInfo
	batchSize int
	logger    *zap.Logger
}

// NewWalletTokensCollector creates a token balance collector for one
// network over its tracked token list.
func NewWalletTokensCollector(
	network entity.NetworkDefinition,
	ledger port.LedgerClientProvider,
	prices port.PriceService,
	tokens []entity.TokenInfo,
	batchSize int,
	logger *zap.Logger,
) *WalletTokensCollector {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &WalletTokensCollector{
		network:   network,
		ledger:    ledger,
		prices:    prices,
		tokens:    tokens,
		batchSize: batchSize,
		logger:    logger.Named("WalletTokensCollector").With(zap.String("network", network.Slug)),
	}
}

func (c *WalletTokensCollector) ID() string {
	return "tokens:" + c.network.Slug
}

func (c *WalletTokensCollector) Execute(ctx context.Context, owner string) ([]entity.PositionRecord, error) {
	if len(c.tokens) == 0 {
		return []entity.PositionRecord{}, nil
	}

	client, err := c.ledger.GetClient(c.network.Slug)
	if err != nil {
		return nil, fmt.Errorf("ledger client unavailable: %w", err)
	}

	tokensByAddress := make(map[string]entity.TokenInfo, len(c.tokens))
	addresses := make([]string, 0, len(c.tokens))
	for _, token := range c.tokens {
		if strings.EqualFold(token.Address, entity.ZeroAddress) {
			continue
		}
		addresses = append(addresses, token.Address)
		tokensByAddress[strings.ToLower(token.Address)] = token
	}

	var mu sync.Mutex
	records := make([]entity.PositionRecord, 0, len(addresses))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, batch := range utils.BatchStrings(addresses, c.batchSize) {
		currentBatch := batch
		eg.Go(func() error {
			balances, err := client.GetTokenBalances(egCtx, owner, currentBatch)
			if err != nil {
				// Partial failure: drop this batch, keep the rest.
				c.logger.Warn("token balance batch failed",
					zap.Int("batchSize", len(currentBatch)),
					zap.Error(err))
				return nil
			}

			// Price lookups can hit remote providers; keep them outside the
			// lock so batches stay concurrent.
			batchRecords := make([]entity.PositionRecord, 0, len(balances))
			for _, balance := range balances {
				if balance.Amount == nil || balance.Amount.Sign() == 0 {
					continue
				}
				token, ok := tokensByAddress[strings.ToLower(balance.TokenAddress)]
				if !ok {
					continue
				}
				batchRecords = append(batchRecords, c.priceRecord(egCtx, token, balance))
			}

			mu.Lock()
			records = append(records, batchRecords...)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(records, func(i, j int) bool {
		return records[i].TokenSymbol < records[j].TokenSymbol
	})
	return records, nil
}

func (c *WalletTokensCollector) priceRecord(ctx context.Context, token entity.TokenInfo, balance entity.TokenBalance) entity.PositionRecord {
	record := entity.PositionRecord{
		CollectorID:      c.ID(),
		Network:          c.network.Slug,
		Kind:             entity.PositionToken,
		TokenAddress:     balance.TokenAddress,
		TokenSymbol:      token.Symbol,
		Decimals:         token.Decimals,
		FormattedBalance: utils.FormatBigInt(balance.Amount, token.Decimals),
	}

	quote, ok := c.prices.GetCurrentPrice(ctx, entity.AssetKey(c.network.Slug, balance.TokenAddress))
	if !ok {
		// No price available now; the position is reported unvalued.
		return record
	}
	record.PriceUSD = quote.PriceUSD
	record.ValueUSD = utils.ValueUSD(balance.Amount, quote.PriceUSD, token.Decimals)
	record.PriceApproximate = quote.IsApproximate
	return record
}
