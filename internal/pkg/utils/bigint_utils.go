package utils

import (
	"math/big"
	"strings"
)

// FormatBigInt converts a raw ledger amount to a human-readable decimal
// string using the token's decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345".
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(amountFloat, divisor)

	formatted := value.Text('f', int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if formatted == "" {
		return "0"
	}
	return formatted
}

// ValueUSD computes the USD valuation of a raw amount at the given unit
// price. Precision is bounded by float64, which is acceptable for
// best-effort portfolio estimates.
func ValueUSD(amount *big.Int, priceUSD float64, decimals uint8) float64 {
	if amount == nil || priceUSD <= 0 {
		return 0
	}
	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	units, _ := new(big.Float).Quo(amountFloat, divisor).Float64()
	return units * priceUSD
}
