package entity

import "strings"

// TokenInfo describes a tracked token on a specific network, loaded from
// the per-network tokens file.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AssetKey builds the provider-facing asset reference for a token. The
// resolution engine and the cache key everything by this combined form so
// one flat address space covers all configured networks.
// Example: AssetKey("ethereum", "0xA0b8...") => "ethereum:0xa0b8...".
func AssetKey(networkSlug, address string) string {
	return networkSlug + ":" + strings.ToLower(address)
}

// SplitAssetKey is the inverse of AssetKey. The second return is false when
// the key has no network part.
func SplitAssetKey(key string) (networkSlug, address string, ok bool) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
