package collector

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

// NFTCollection describes one ERC-721 collection to count holdings in.
type NFTCollection struct {
	Name            string
	ContractAddress string
	Symbol          string
}

var _ port.Collector = (*NFTCollector)(nil)

// NFTCollector counts the owner's holdings in the configured ERC-721
// collections. NFTs rarely have a spot price on the token markets, so
// holdings are usually reported unvalued; a resolvable collection price is
// applied per item when one exists.
type NFTCollector struct {
	network     entity.NetworkDefinition
	ledger      port.LedgerClientProvider
	prices      port.PriceService
	collections []NFTCollection
	logger      *zap.Logger
}

func NewNFTCollector(
	network entity.NetworkDefinition,
	ledger port.LedgerClientProvider,
	prices port.PriceService,
	collections []NFTCollection,
	logger *zap.Logger,
) *NFTCollector {
	return &NFTCollector{
		network:     network,
		ledger:      ledger,
		prices:      prices,
		collections: collections,
		logger:      logger.Named("NFTCollector").With(zap.String("network", network.Slug)),
	}
}

func (c *NFTCollector) ID() string {
	return "nft:" + c.network.Slug
}

func (c *NFTCollector) Execute(ctx context.Context, owner string) ([]entity.PositionRecord, error) {
	if len(c.collections) == 0 {
		return []entity.PositionRecord{}, nil
	}

	client, err := c.ledger.GetClient(c.network.Slug)
	if err != nil {
		return nil, fmt.Errorf("ledger client unavailable: %w", err)
	}

	records := make([]entity.PositionRecord, 0, len(c.collections))
	for _, collection := range c.collections {
		count, err := client.GetContractPosition(ctx, owner, collection.ContractAddress)
		if err != nil {
			c.logger.Warn("NFT collection query failed",
				zap.String("collection", collection.Name),
				zap.String("contract", collection.ContractAddress),
				zap.Error(err))
			continue
		}
		if count == nil || count.Sign() == 0 {
			continue
		}

		record := entity.PositionRecord{
			CollectorID:      c.ID(),
			Network:          c.network.Slug,
			Kind:             entity.PositionNFT,
			TokenAddress:     collection.ContractAddress,
			TokenSymbol:      collection.Symbol,
			Decimals:         0,
			FormattedBalance: count.String(),
		}

		quote, ok := c.prices.GetCurrentPrice(ctx, entity.AssetKey(c.network.Slug, collection.ContractAddress))
		if ok {
			record.PriceUSD = quote.PriceUSD
			record.ValueUSD = quote.PriceUSD * float64FromBigInt(count)
			record.PriceApproximate = quote.IsApproximate
		}
		records = append(records, record)
	}
	return records, nil
}

func float64FromBigInt(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
