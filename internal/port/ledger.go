package port

import (
	"context"
	"math/big"

	"portfolio_tracker/internal/domain/entity"
)

// LedgerClient is the opaque query capability over one blockchain network.
// Results are best-effort and possibly empty; collectors treat them as such.
type LedgerClient interface {
	// GetNativeBalance fetches the native currency balance of a wallet.
	GetNativeBalance(ctx context.Context, owner string) (*big.Int, error)

	// GetTokenBalances fetches balances for the given token contract
	// addresses in one batched call.
	GetTokenBalances(ctx context.Context, owner string, tokenAddresses []string) ([]entity.TokenBalance, error)

	// GetContractPosition reads the owner's position size held in a program
	// contract (staking pool, vault, NFT collection).
	GetContractPosition(ctx context.Context, owner string, contract string) (*big.Int, error)

	// Definition returns the network this client is bound to.
	Definition() entity.NetworkDefinition
}

// LedgerClientProvider hands out one LedgerClient per configured network,
// constructing and caching them lazily.
type LedgerClientProvider interface {
	GetClient(networkSlug string) (LedgerClient, error)
}
