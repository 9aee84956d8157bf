package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Networks     []NetworkNode      `yaml:"networks"`
	Cache        CacheConfig        `yaml:"cache"`
	Redis        RedisConfig        `yaml:"redis"`
	Breaker      BreakerConfig      `yaml:"breaker"`
	PriceService PriceServiceConfig `yaml:"priceService"`
	Providers    ProvidersConfig    `yaml:"providers"`
	RpcClient    RpcClientConfig    `yaml:"rpcClient"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// NetworkNode holds the configuration for a specific blockchain network.
// Slug is the chain identifier shared with the price providers.
type NetworkNode struct {
	ChainID           int64                 `yaml:"chainID"`
	Name              string                `yaml:"name"`
	Slug              string                `yaml:"slug"`
	NativeSymbol      string                `yaml:"nativeSymbol"`
	NativeDecimals    uint8                 `yaml:"nativeDecimals"`
	Endpoint          string                `yaml:"endpoint"`
	FallbackEndpoints []string              `yaml:"fallbackEndpoints"`
	TokensFile        string                `yaml:"tokensFile"`
	WrappedNative     string                `yaml:"wrappedNative"`
	StakingPools      []StakingPoolNode     `yaml:"stakingPools"`
	NFTCollections    []NFTCollectionNode   `yaml:"nftCollections"`
}

// StakingPoolNode configures one staking contract to track on a network.
type StakingPoolNode struct {
	Name     string `yaml:"name"`
	Contract string `yaml:"contract"`
	Token    string `yaml:"token"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// NFTCollectionNode configures one ERC-721 collection to track on a network.
type NFTCollectionNode struct {
	Name     string `yaml:"name"`
	Contract string `yaml:"contract"`
	Symbol   string `yaml:"symbol"`
}

// CacheConfig holds configuration for the cache layer.
type CacheConfig struct {
	Backend                 string `yaml:"backend"` // "memory" or "redis"
	SweepIntervalMinutes    int    `yaml:"sweepIntervalMinutes"`
	SnapshotPath            string `yaml:"snapshotPath"`
	SnapshotIntervalSeconds int    `yaml:"snapshotIntervalSeconds"`
}

// RedisConfig holds the connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BreakerConfig holds the per-provider circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold   int `yaml:"failureThreshold"`
	ResetWindowSeconds int `yaml:"resetWindowSeconds"`
	ProbeRatio         int `yaml:"probeRatio"`
}

// PriceServiceConfig holds configuration for the price resolution engine.
type PriceServiceConfig struct {
	CacheTTLMinutes            int   `yaml:"cacheTTLMinutes"`
	HistoricalTTLHours         int   `yaml:"historicalTTLHours"`
	ApproximateTTLMinutes      int   `yaml:"approximateTTLMinutes"`
	MetadataTTLHours           int   `yaml:"metadataTTLHours"`
	AllowApproximateHistorical *bool `yaml:"allowApproximateHistorical"`
	MaxAttempts                int   `yaml:"maxAttempts"`
	RetryBaseDelayMs           int64 `yaml:"retryBaseDelayMs"`
}

// ProvidersConfig holds the price provider adapters' settings. Order lists
// provider ids by priority; omitted providers are excluded from the cascade.
type ProvidersConfig struct {
	Order       []string          `yaml:"order"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	DefiLlama   DefiLlamaConfig   `yaml:"defiLlama"`
	CoinGecko   CoinGeckoConfig   `yaml:"coinGecko"`
}

// DEXScreenerConfig holds the configuration for the DEX Screener client.
type DEXScreenerConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// DefiLlamaConfig holds the configuration for the DefiLlama client.
type DefiLlamaConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// CoinGeckoConfig holds the configuration for the CoinGecko client.
type CoinGeckoConfig struct {
	BaseURL              string            `yaml:"baseURL"`
	ApiKey               string            `yaml:"apiKey"`
	RequestTimeoutMillis int64             `yaml:"requestTimeoutMillis"`
	AssetPlatformMapping map[string]string `yaml:"assetPlatformMapping"`
}

// RpcClientConfig holds configuration for ledger RPC clients.
type RpcClientConfig struct {
	ConnectTimeoutMs int64   `yaml:"connectTimeoutMs"`
	CallTimeoutMs    int64   `yaml:"callTimeoutMs"`
	RateLimit        float64 `yaml:"rateLimit"`
	BurstLimit       int     `yaml:"burstLimit"`
}

// OrchestratorConfig holds configuration for the collector fan-out.
type OrchestratorConfig struct {
	CollectorTimeoutMs    int64 `yaml:"collectorTimeoutMs"`
	ResultTTLSeconds      int   `yaml:"resultTTLSeconds"`
	MaxConcurrent         int   `yaml:"maxConcurrent"`
	MaxTokensPerBatchCall int   `yaml:"maxTokensPerBatchCall"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}

	// Apply default base URLs for providers if not set
	if cfg.Providers.DEXScreener.BaseURL == "" {
		cfg.Providers.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", cfg.Providers.DEXScreener.BaseURL)
	}
	if cfg.Providers.DefiLlama.BaseURL == "" {
		cfg.Providers.DefiLlama.BaseURL = "https://coins.llama.fi"
		logrus.Infof("DefiLlama.BaseURL not set, defaulting to %s", cfg.Providers.DefiLlama.BaseURL)
	}
	if cfg.Providers.CoinGecko.BaseURL == "" {
		cfg.Providers.CoinGecko.BaseURL = "https://api.coingecko.com"
		logrus.Infof("CoinGecko.BaseURL not set, defaulting to %s", cfg.Providers.CoinGecko.BaseURL)
	}
	if cfg.Providers.DEXScreener.RequestTimeoutMillis == 0 {
		cfg.Providers.DEXScreener.RequestTimeoutMillis = 10000
	}
	if cfg.Providers.DefiLlama.RequestTimeoutMillis == 0 {
		cfg.Providers.DefiLlama.RequestTimeoutMillis = 10000
	}
	if cfg.Providers.CoinGecko.RequestTimeoutMillis == 0 {
		cfg.Providers.CoinGecko.RequestTimeoutMillis = 10000
	}
	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"dexscreener", "defillama", "coingecko"}
		logrus.Infof("Providers.Order not set, defaulting to %v", cfg.Providers.Order)
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
		logrus.Infof("Cache.Backend not set, defaulting to %s", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return nil, fmt.Errorf("unsupported cache backend %q, expected \"memory\" or \"redis\"", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("cache backend is redis but redis.addr is not set")
	}

	if cfg.PriceService.AllowApproximateHistorical == nil {
		allow := true
		cfg.PriceService.AllowApproximateHistorical = &allow
		logrus.Info("PriceService.AllowApproximateHistorical not set, defaulting to true")
	}

	// Validate network definitions; the ledger layer cannot work without
	// an endpoint, and the pricing layer cannot work without a slug.
	for i, network := range cfg.Networks {
		if network.Slug == "" {
			return nil, fmt.Errorf("network #%d (%s) is missing slug", i, network.Name)
		}
		if network.Endpoint == "" {
			return nil, fmt.Errorf("network %q is missing endpoint", network.Slug)
		}
		if network.NativeDecimals == 0 {
			cfg.Networks[i].NativeDecimals = 18
			logrus.Infof("Network %q nativeDecimals not set, defaulting to 18", network.Slug)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}
