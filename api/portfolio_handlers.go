package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/port"
)

// PortfolioHandler serves the portfolio and pricing endpoints.
type PortfolioHandler struct {
	orchestrator port.Orchestrator
	prices       port.PriceService
	logger       *zap.Logger
}

// NewPortfolioHandler creates the handler set over the orchestrator and the
// price resolution engine.
func NewPortfolioHandler(orchestrator port.Orchestrator, prices port.PriceService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		orchestrator: orchestrator,
		prices:       prices,
		logger:       logger.Named("PortfolioHandler"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetPortfolioHandler runs a full orchestration for the requested owner
// address and returns the assembled snapshot.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("address"))
	if owner == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "address is required"})
		return
	}

	snapshot, err := h.orchestrator.Run(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("orchestration failed", zap.String("owner", owner), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetPriceHandler resolves a token's current price, or a historical one when
// the "at" query parameter carries a unix timestamp.
func (h *PortfolioHandler) GetPriceHandler(c *gin.Context) {
	network := c.Param("network")
	address := c.Param("address")
	if network == "" || address == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "network and address are required"})
		return
	}
	asset := entity.AssetKey(network, address)

	if atParam := c.Query("at"); atParam != "" {
		unix, err := strconv.ParseInt(atParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "at must be a unix timestamp"})
			return
		}
		quote, ok := h.prices.GetHistoricalPrice(c.Request.Context(), asset, time.Unix(unix, 0))
		if !ok {
			c.JSON(http.StatusNotFound, errorResponse{Error: "no historical price available for " + asset})
			return
		}
		c.JSON(http.StatusOK, quote)
		return
	}

	quote, ok := h.prices.GetCurrentPrice(c.Request.Context(), asset)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no price available for " + asset})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetMetadataHandler resolves a token's symbol, name and decimals.
func (h *PortfolioHandler) GetMetadataHandler(c *gin.Context) {
	network := c.Param("network")
	address := c.Param("address")
	if network == "" || address == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "network and address are required"})
		return
	}
	asset := entity.AssetKey(network, address)

	md, ok := h.prices.GetTokenMetadata(c.Request.Context(), asset)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no metadata available for " + asset})
		return
	}
	c.JSON(http.StatusOK, md)
}

// HealthHandler reports liveness.
func (h *PortfolioHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
