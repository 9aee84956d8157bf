package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_tracker/internal/port"
)

// RegisterPortfolioRoutes wires the portfolio endpoints onto the router.
func RegisterPortfolioRoutes(router *gin.Engine, orchestrator port.Orchestrator, prices port.PriceService, logger *zap.Logger) {
	handler := NewPortfolioHandler(orchestrator, prices, logger)

	router.GET("/healthz", handler.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolio/:address", handler.GetPortfolioHandler)
		v1.GET("/price/:network/:address", handler.GetPriceHandler)
		v1.GET("/metadata/:network/:address", handler.GetMetadataHandler)
	}
}
