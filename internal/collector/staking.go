package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
	"portfolio_tracker/internal/port"
)

// StakingPool describes one staking contract to query. The staked balance
// is read from the pool contract; its USD value comes from the underlying
// token's price.
type StakingPool struct {
	Name            string
	ContractAddress string
	// TokenAddress is the underlying staked token, used for pricing.
	TokenAddress string
	TokenSymbol  string
	Decimals     uint8
}

var _ port.Collector = (*StakingCollector)(nil)

// StakingCollector reads the owner's staked balances across the configured
// pools on one network. Pools that fail to respond are logged and skipped.
type StakingCollector struct {
	network entity.NetworkDefinition
	ledger  port.LedgerClientProvider
	prices  port.PriceService
	pools   []StakingPool
	logger  *zap.Logger
}

func NewStakingCollector(
	network entity.NetworkDefinition,
	ledger port.LedgerClientProvider,
	prices port.PriceService,
	pools []StakingPool,
	logger *zap.Logger,
) *StakingCollector {
	return &StakingCollector{
		network: network,
		ledger:  ledger,
		prices:  prices,
		pools:   pools,
		logger:  logger.Named("StakingCollector").With(zap.String("network", network.Slug)),
	}
}

func (c *StakingCollector) ID() string {
	return "staking:" + c.network.Slug
}

func (c *StakingCollector) Execute(ctx context.Context, owner string) ([]entity.PositionRecord, error) {
	if len(c.pools) == 0 {
		return []entity.PositionRecord{}, nil
	}

	client, err := c.ledger.GetClient(c.network.Slug)
	if err != nil {
		return nil, fmt.Errorf("ledger client unavailable: %w", err)
	}

	records := make([]entity.PositionRecord, 0, len(c.pools))
	for _, pool := range c.pools {
		staked, err := client.GetContractPosition(ctx, owner, pool.ContractAddress)
		if err != nil {
			c.logger.Warn("staking pool query failed",
				zap.String("pool", pool.Name),
				zap.String("contract", pool.ContractAddress),
				zap.Error(err))
			continue
		}
		if staked == nil || staked.Sign() == 0 {
			continue
		}

		record := entity.PositionRecord{
			CollectorID:      c.ID(),
			Network:          c.network.Slug,
			Kind:             entity.PositionStaking,
			TokenAddress:     pool.ContractAddress,
			TokenSymbol:      pool.TokenSymbol,
			Decimals:         pool.Decimals,
			FormattedBalance: utils.FormatBigInt(staked, pool.Decimals),
		}

		quote, ok := c.prices.GetCurrentPrice(ctx, entity.AssetKey(c.network.Slug, pool.TokenAddress))
		if ok {
			record.PriceUSD = quote.PriceUSD
			record.ValueUSD = utils.ValueUSD(staked, quote.PriceUSD, pool.Decimals)
			record.PriceApproximate = quote.IsApproximate
		}
		records = append(records, record)
	}
	return records, nil
}
