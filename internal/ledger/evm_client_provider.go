package ledger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

// ProviderConfig tunes how ledger clients are constructed.
type ProviderConfig struct {
	ConnectTimeout time.Duration
	RPCCallTimeout time.Duration
	// RateLimit and Burst bound RPC calls per network endpoint.
	RateLimit float64
	Burst     int
}

func (c *ProviderConfig) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RPCCallTimeout <= 0 {
		c.RPCCallTimeout = 15 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
}

var _ port.LedgerClientProvider = (*EVMClientProvider)(nil)

// EVMClientProvider hands out one cached EVMClient per configured network,
// dialing lazily on first use.
type EVMClientProvider struct {
	mu       sync.Mutex
	clients  map[string]port.LedgerClient
	networks map[string]entity.NetworkDefinition
	cfg      ProviderConfig
	logger   *zap.Logger
}

// NewEVMClientProvider creates a provider over the configured network
// definitions, keyed by slug.
func NewEVMClientProvider(networks []entity.NetworkDefinition, cfg ProviderConfig, logger *zap.Logger) *EVMClientProvider {
	cfg.applyDefaults()
	byName := make(map[string]entity.NetworkDefinition, len(networks))
	for _, netDef := range networks {
		byName[netDef.Slug] = netDef
	}
	return &EVMClientProvider{
		clients:  make(map[string]port.LedgerClient),
		networks: byName,
		cfg:      cfg,
		logger:   logger.Named("LedgerClientProvider"),
	}
}

// GetClient returns the ledger client for a network slug, dialing and
// caching it on first request.
func (p *EVMClientProvider) GetClient(networkSlug string) (port.LedgerClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[networkSlug]; ok {
		return client, nil
	}

	netDef, ok := p.networks[networkSlug]
	if !ok {
		return nil, fmt.Errorf("network %q is not configured", networkSlug)
	}

	p.logger.Info("creating ledger client",
		zap.String("network", netDef.Name),
		zap.String("rpcPrimary", netDef.PrimaryRPCURL))

	limiter := rate.NewLimiter(rate.Limit(p.cfg.RateLimit), p.cfg.Burst)
	client, err := NewEVMClient(netDef, p.cfg.ConnectTimeout, p.cfg.RPCCallTimeout, limiter)
	if err != nil {
		p.logger.Error("failed to create ledger client", zap.String("network", netDef.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to create ledger client for %s: %w", netDef.Name, err)
	}

	p.clients[networkSlug] = client
	return client, nil
}
