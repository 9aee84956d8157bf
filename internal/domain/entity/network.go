package entity

import "math/big"

// ZeroAddress is the conventional address used for a network's native
// currency in token files and price lookups.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NetworkDefinition holds the ledger-facing description of a blockchain
// network. Slug is the chain identifier shared with the price providers
// (e.g. "ethereum", "bsc").
type NetworkDefinition struct {
	ChainID         int64    `json:"chainId" yaml:"chainId"`
	Name            string   `json:"name" yaml:"name"`
	Slug            string   `json:"slug" yaml:"slug"`
	NativeSymbol    string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	NativeDecimals  uint8    `json:"nativeDecimals" yaml:"nativeDecimals"`
	PrimaryRPCURL   string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs []string `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
}

// TokenBalance is a raw ledger balance for one token, before pricing.
type TokenBalance struct {
	TokenAddress string
	Amount       *big.Int
}
