package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBigInt(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{"nil amount", nil, 18, "0"},
		{"zero decimals", big.NewInt(42), 0, "42"},
		{"whole units", mustBig("2000000000000000000"), 18, "2"},
		{"fractional", mustBig("1234500000000000000"), 18, "1.2345"},
		{"sub-unit", big.NewInt(5), 6, "0.000005"},
		{"zero", big.NewInt(0), 18, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBigInt(tt.amount, tt.decimals))
		})
	}
}

func TestValueUSD(t *testing.T) {
	assert.Equal(t, 6000.0, ValueUSD(mustBig("2000000000000000000"), 3000, 18))
	assert.Zero(t, ValueUSD(nil, 3000, 18))
	assert.Zero(t, ValueUSD(big.NewInt(1), 0, 18))
	assert.Zero(t, ValueUSD(big.NewInt(1), -5, 18))
}

func TestBatchStrings(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	batches := BatchStrings(items, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, batches)

	assert.Empty(t, BatchStrings(nil, 3))
	assert.Equal(t, [][]string{items}, BatchStrings(items, 0), "non-positive batch size yields one batch")
	assert.Equal(t, [][]string{items}, BatchStrings(items, 10))
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big.Int literal: " + s)
	}
	return v
}
