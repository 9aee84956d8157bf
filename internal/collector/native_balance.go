package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
	"portfolio_tracker/internal/port"
)

var _ port.Collector = (*NativeBalanceCollector)(nil)

// NativeBalanceCollector reads the owner's native coin balance on one
// network. The native coin has no contract of its own, so it is priced
// through the wrapped-native token address when one is configured.
type NativeBalanceCollector struct {
	network              entity.NetworkDefinition
	ledger               port.LedgerClientProvider
	prices               port.PriceService
	wrappedNativeAddress string
	logger               *zap.Logger
}

func NewNativeBalanceCollector(
	network entity.NetworkDefinition,
	ledger port.LedgerClientProvider,
	prices port.PriceService,
	wrappedNativeAddress string,
	logger *zap.Logger,
) *NativeBalanceCollector {
	return &NativeBalanceCollector{
		network:              network,
		ledger:               ledger,
		prices:               prices,
		wrappedNativeAddress: wrappedNativeAddress,
		logger:               logger.Named("NativeBalanceCollector").With(zap.String("network", network.Slug)),
	}
}

func (c *NativeBalanceCollector) ID() string {
	return "native:" + c.network.Slug
}

func (c *NativeBalanceCollector) Execute(ctx context.Context, owner string) ([]entity.PositionRecord, error) {
	client, err := c.ledger.GetClient(c.network.Slug)
	if err != nil {
		return nil, fmt.Errorf("ledger client unavailable: %w", err)
	}

	balance, err := client.GetNativeBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	if balance == nil || balance.Sign() == 0 {
		return []entity.PositionRecord{}, nil
	}

	record := entity.PositionRecord{
		CollectorID:      c.ID(),
		Network:          c.network.Slug,
		Kind:             entity.PositionNative,
		TokenAddress:     entity.ZeroAddress,
		TokenSymbol:      c.network.NativeSymbol,
		Decimals:         c.network.NativeDecimals,
		FormattedBalance: utils.FormatBigInt(balance, c.network.NativeDecimals),
	}

	if c.wrappedNativeAddress != "" {
		quote, ok := c.prices.GetCurrentPrice(ctx, entity.AssetKey(c.network.Slug, c.wrappedNativeAddress))
		if ok {
			record.PriceUSD = quote.PriceUSD
			record.ValueUSD = utils.ValueUSD(balance, quote.PriceUSD, c.network.NativeDecimals)
			record.PriceApproximate = quote.IsApproximate
		} else {
			c.logger.Debug("no price for wrapped native token",
				zap.String("wrappedNative", c.wrappedNativeAddress))
		}
	}
	return []entity.PositionRecord{record}, nil
}
