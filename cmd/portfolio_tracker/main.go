package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"portfolio_tracker/api"
	"portfolio_tracker/internal/breaker"
	"portfolio_tracker/internal/cache"
	rediscache "portfolio_tracker/internal/cache/redis"
	"portfolio_tracker/internal/client"
	"portfolio_tracker/internal/collector"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/ledger"
	"portfolio_tracker/internal/pkg/utils"
	"portfolio_tracker/internal/port"
	"portfolio_tracker/internal/service"
	"portfolio_tracker/pkg/metrics"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// Bridge slog callers onto the same zap core.
	slogHandler := zapslog.NewHandler(zapLogger.Core(), &zapslog.HandlerOptions{})
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	// Cache backend
	var store port.Cache
	var memCache *cache.MemoryCache
	switch cfg.Cache.Backend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisCache := rediscache.New(redisClient, zapLogger)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			cancelPing()
			zapLogger.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancelPing()
		store = redisCache
		zapLogger.Info("Redis cache initialized", zap.String("addr", cfg.Redis.Addr))
	default:
		memCache = cache.NewMemoryCache(cache.Options{
			SweepInterval:    time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute,
			SnapshotPath:     cfg.Cache.SnapshotPath,
			SnapshotInterval: time.Duration(cfg.Cache.SnapshotIntervalSeconds) * time.Second,
		}, zapLogger)
		memCache.StartSnapshotting()
		store = memCache
		zapLogger.Info("In-memory cache initialized",
			zap.String("snapshotPath", cfg.Cache.SnapshotPath))
	}

	breakerRegistry := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetWindow:      time.Duration(cfg.Breaker.ResetWindowSeconds) * time.Second,
		ProbeRatio:       cfg.Breaker.ProbeRatio,
	}, zapLogger)

	providers := buildProviders(cfg, zapLogger)
	if len(providers) == 0 {
		zapLogger.Fatal("No price providers configured")
	}
	zapLogger.Info("Price providers initialized", zap.Int("count", len(providers)))

	allowApproximate := cfg.PriceService.AllowApproximateHistorical == nil || *cfg.PriceService.AllowApproximateHistorical
	priceService := service.NewPriceService(providers, store, breakerRegistry, service.PriceServiceConfig{
		CacheTTL:                   time.Duration(cfg.PriceService.CacheTTLMinutes) * time.Minute,
		HistoricalTTL:              time.Duration(cfg.PriceService.HistoricalTTLHours) * time.Hour,
		ApproximateTTL:             time.Duration(cfg.PriceService.ApproximateTTLMinutes) * time.Minute,
		MetadataTTL:                time.Duration(cfg.PriceService.MetadataTTLHours) * time.Hour,
		AllowApproximateHistorical: allowApproximate,
		MaxAttempts:                cfg.PriceService.MaxAttempts,
		RetryBaseDelay:             time.Duration(cfg.PriceService.RetryBaseDelayMs) * time.Millisecond,
	}, zapLogger)
	zapLogger.Info("PriceService initialized")

	networks := make([]entity.NetworkDefinition, 0, len(cfg.Networks))
	for _, node := range cfg.Networks {
		networks = append(networks, entity.NetworkDefinition{
			ChainID:         node.ChainID,
			Name:            node.Name,
			Slug:            node.Slug,
			NativeSymbol:    node.NativeSymbol,
			NativeDecimals:  node.NativeDecimals,
			PrimaryRPCURL:   node.Endpoint,
			FallbackRPCURLs: node.FallbackEndpoints,
		})
	}
	ledgerProvider := ledger.NewEVMClientProvider(networks, ledger.ProviderConfig{
		ConnectTimeout: time.Duration(cfg.RpcClient.ConnectTimeoutMs) * time.Millisecond,
		RPCCallTimeout: time.Duration(cfg.RpcClient.CallTimeoutMs) * time.Millisecond,
		RateLimit:      cfg.RpcClient.RateLimit,
		Burst:          cfg.RpcClient.BurstLimit,
	}, zapLogger)

	collectors := buildCollectors(cfg, networks, ledgerProvider, priceService, zapLogger)
	zapLogger.Info("Collectors initialized", zap.Int("count", len(collectors)))

	orchestrator := service.NewOrchestrator(collectors, store, service.OrchestratorConfig{
		CollectorTimeout: time.Duration(cfg.Orchestrator.CollectorTimeoutMs) * time.Millisecond,
		ResultTTL:        time.Duration(cfg.Orchestrator.ResultTTLSeconds) * time.Second,
		MaxConcurrent:    cfg.Orchestrator.MaxConcurrent,
	}, zapLogger)
	zapLogger.Info("Orchestrator initialized")

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(utils.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	api.RegisterPortfolioRoutes(router, orchestrator, priceService, zapLogger)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", "/metrics"))

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	if memCache != nil {
		// Final snapshot before exit.
		memCache.Stop()
	}

	zapLogger.Info("Server exiting")
}

// buildProviders assembles the price provider cascade in the configured
// priority order.
func buildProviders(cfg *config.Config, zapLogger *zap.Logger) []port.PriceProvider {
	providers := make([]port.PriceProvider, 0, len(cfg.Providers.Order))
	for _, id := range cfg.Providers.Order {
		switch id {
		case "dexscreener":
			providers = append(providers, client.NewDEXScreenerClient(
				cfg.Providers.DEXScreener.BaseURL,
				time.Duration(cfg.Providers.DEXScreener.RequestTimeoutMillis)*time.Millisecond,
				zapLogger,
			))
		case "defillama":
			providers = append(providers, client.NewDefiLlamaClient(
				cfg.Providers.DefiLlama.BaseURL,
				time.Duration(cfg.Providers.DefiLlama.RequestTimeoutMillis)*time.Millisecond,
				zapLogger,
			))
		case "coingecko":
			providers = append(providers, client.NewCoinGeckoClient(
				cfg.Providers.CoinGecko.BaseURL,
				cfg.Providers.CoinGecko.ApiKey,
				time.Duration(cfg.Providers.CoinGecko.RequestTimeoutMillis)*time.Millisecond,
				cfg.Providers.CoinGecko.AssetPlatformMapping,
				zapLogger,
			))
		default:
			zapLogger.Warn("Unknown provider id in providers.order, skipping", zap.String("provider", id))
		}
	}
	return providers
}

// buildCollectors instantiates the per-network collector set: native
// balance, tracked tokens, staking pools and NFT collections.
func buildCollectors(
	cfg *config.Config,
	networks []entity.NetworkDefinition,
	ledgerProvider port.LedgerClientProvider,
	priceService port.PriceService,
	zapLogger *zap.Logger,
) []port.Collector {
	collectors := make([]port.Collector, 0, len(networks)*4)
	for i, node := range cfg.Networks {
		network := networks[i]

		collectors = append(collectors, collector.NewNativeBalanceCollector(
			network, ledgerProvider, priceService, node.WrappedNative, zapLogger))

		if node.TokensFile != "" {
			tokens, err := utils.LoadTokensFromJSON(node.TokensFile)
			if err != nil {
				zapLogger.Warn("Failed to load tokens file, skipping token collector",
					zap.String("network", node.Slug),
					zap.String("file", node.TokensFile),
					zap.Error(err))
			} else {
				collectors = append(collectors, collector.NewWalletTokensCollector(
					network, ledgerProvider, priceService, tokens,
					cfg.Orchestrator.MaxTokensPerBatchCall, zapLogger))
			}
		}

		if len(node.StakingPools) > 0 {
			pools := make([]collector.StakingPool, 0, len(node.StakingPools))
			for _, pool := range node.StakingPools {
				pools = append(pools, collector.StakingPool{
					Name:            pool.Name,
					ContractAddress: pool.Contract,
					TokenAddress:    pool.Token,
					TokenSymbol:     pool.Symbol,
					Decimals:        pool.Decimals,
				})
			}
			collectors = append(collectors, collector.NewStakingCollector(
				network, ledgerProvider, priceService, pools, zapLogger))
		}

		if len(node.NFTCollections) > 0 {
			nfts := make([]collector.NFTCollection, 0, len(node.NFTCollections))
			for _, coll := range node.NFTCollections {
				nfts = append(nfts, collector.NFTCollection{
					Name:            coll.Name,
					ContractAddress: coll.Contract,
					Symbol:          coll.Symbol,
				})
			}
			collectors = append(collectors, collector.NewNFTCollector(
				network, ledgerProvider, priceService, nfts, zapLogger))
		}
	}
	return collectors
}
