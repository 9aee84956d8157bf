package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
)

type fakeOrchestrator struct {
	snapshot *entity.PortfolioSnapshot
	err      error
}

func (o *fakeOrchestrator) Run(ctx context.Context, owner string) (*entity.PortfolioSnapshot, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.snapshot, nil
}

type fakePriceService struct {
	quotes   map[string]entity.PriceQuote
	metadata map[string]entity.TokenMetadata
}

func (s *fakePriceService) GetCurrentPrice(ctx context.Context, asset string) (entity.PriceQuote, bool) {
	q, ok := s.quotes[asset]
	return q, ok
}

func (s *fakePriceService) GetHistoricalPrice(ctx context.Context, asset string, at time.Time) (entity.PriceQuote, bool) {
	q, ok := s.quotes[asset]
	return q, ok
}

func (s *fakePriceService) GetTokenMetadata(ctx context.Context, asset string) (entity.TokenMetadata, bool) {
	md, ok := s.metadata[asset]
	return md, ok
}

func newTestRouter(orchestrator *fakeOrchestrator, prices *fakePriceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterPortfolioRoutes(router, orchestrator, prices, zap.NewNop())
	return router
}

func TestGetPortfolioReturnsSnapshot(t *testing.T) {
	snapshot := &entity.PortfolioSnapshot{
		Owner:         "0xowner",
		TotalValueUSD: 123.45,
		Elements:      []entity.PositionRecord{{CollectorID: "tokens:ethereum", TokenSymbol: "WETH", ValueUSD: 123.45}},
		Report: map[string]entity.CollectorOutcome{
			"tokens:ethereum": {CollectorID: "tokens:ethereum", Status: entity.OutcomeSuccess, ItemCount: 1},
		},
	}
	router := newTestRouter(&fakeOrchestrator{snapshot: snapshot}, &fakePriceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/0xowner", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got entity.PortfolioSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "0xowner", got.Owner)
	assert.Equal(t, 123.45, got.TotalValueUSD)
	assert.Len(t, got.Report, 1)
}

func TestGetPortfolioPropagatesOrchestrationError(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{err: fmt.Errorf("boom")}, &fakePriceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/0xowner", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetPriceReturnsQuote(t *testing.T) {
	prices := &fakePriceService{quotes: map[string]entity.PriceQuote{
		"ethereum:0xabc": {Asset: "ethereum:0xabc", PriceUSD: 42, Source: "defillama"},
	}}
	router := newTestRouter(&fakeOrchestrator{}, prices)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/price/ethereum/0xABC", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got entity.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 42.0, got.PriceUSD)
}

func TestGetPriceNotFound(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakePriceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/price/ethereum/0xmissing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPriceHistoricalRejectsBadTimestamp(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakePriceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/price/ethereum/0xabc?at=yesterday", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMetadataReturnsTokenInfo(t *testing.T) {
	prices := &fakePriceService{metadata: map[string]entity.TokenMetadata{
		"ethereum:0xabc": {Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
	}}
	router := newTestRouter(&fakeOrchestrator{}, prices)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metadata/ethereum/0xabc", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got entity.TokenMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "WETH", got.Symbol)
	assert.Equal(t, uint8(18), got.Decimals)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakePriceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
