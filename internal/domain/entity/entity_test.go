package entity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKeyLowercasesAddress(t *testing.T) {
	key := AssetKey("ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	assert.Equal(t, "ethereum:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", key)
}

func TestSplitAssetKey(t *testing.T) {
	slug, address, ok := SplitAssetKey("bsc:0xabc")
	require.True(t, ok)
	assert.Equal(t, "bsc", slug)
	assert.Equal(t, "0xabc", address)

	_, _, ok = SplitAssetKey("0xabc")
	assert.False(t, ok)
	_, _, ok = SplitAssetKey(":0xabc")
	assert.False(t, ok)
	_, _, ok = SplitAssetKey("bsc:")
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(ErrUnsupported))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", ErrUnsupported)))
	assert.False(t, IsRetryable(&ProviderError{Provider: "p", StatusCode: 404, Retryable: false, Err: fmt.Errorf("not found")}))
	assert.True(t, IsRetryable(&ProviderError{Provider: "p", StatusCode: 503, Retryable: true, Err: fmt.Errorf("unavailable")}))
	assert.True(t, IsRetryable(fmt.Errorf("connection reset")), "unclassified errors are treated as transient")
}

func TestProviderErrorMessage(t *testing.T) {
	withStatus := &ProviderError{Provider: "coingecko", StatusCode: 429, Err: fmt.Errorf("rate limited")}
	assert.Contains(t, withStatus.Error(), "coingecko")
	assert.Contains(t, withStatus.Error(), "429")

	withoutStatus := &ProviderError{Provider: "defillama", Err: fmt.Errorf("dial timeout")}
	assert.Contains(t, withoutStatus.Error(), "defillama")
}
