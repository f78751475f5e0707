package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// echoImporter creates every record it receives
type echoImporter struct{}

func (echoImporter) CheckBatchSize(n int) error {
	if n == 0 {
		return integration.ErrValidationRejected
	}
	return nil
}

func (echoImporter) ImportBatch(_ context.Context, records []*integration.NormalizedProductRecord) (*integration.ImportBatchResult, error) {
	result := integration.NewImportBatchResult()
	for i, r := range records {
		result.Add(integration.ImportOutcome{
			Status:    integration.ImportStatusCreated,
			Title:     r.Title,
			ProductID: int64(i + 1),
		})
	}
	return result, nil
}

func newImportAPI(t *testing.T, importLimit int, maxBody int64) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)

	engine := NewEngine(EngineConfig{
		Logger:       zap.New(core),
		AllowOrigins: []string{"https://scraper.example.com"},
		MaxBodySize:  maxBody,
	})

	limiter := middleware.NewRateLimiter(importLimit, time.Minute)
	t.Cleanup(limiter.Close)

	imports := handler.NewStorefrontImportHandler(echoImporter{}, nil)
	system := handler.NewSystemHandler("catalogsync", "test", nil)

	NewAPI(engine).
		Add(StorefrontRoutes(imports, system, middleware.RateLimit(limiter)), SystemRoutes(system)).
		Mount()

	return engine, logs
}

func postProducts(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5000"
	engine.ServeHTTP(w, req)
	return w
}

func TestImportAPI(t *testing.T) {
	const body = `{"products":[{"title":"Chaise","price":"49.00"}]}`

	t.Run("import succeeds and carries a request id", func(t *testing.T) {
		engine, logs := newImportAPI(t, 10, 1<<20)

		w := postProducts(engine, body)

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

		var resp dto.ImportProductsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Imported)
		assert.Equal(t, "1 product(s) imported, 0 skipped (duplicate), 0 error(s)", resp.Message)

		assert.NotZero(t, logs.FilterMessage("HTTP Request").Len())
	})

	t.Run("import is rate limited per client", func(t *testing.T) {
		engine, _ := newImportAPI(t, 1, 1<<20)

		assert.Equal(t, http.StatusOK, postProducts(engine, body).Code)
		w := postProducts(engine, body)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		health := serve(engine, http.MethodGet, "/api/v1/storefront/health")
		assert.Equal(t, http.StatusOK, health.Code, "health is not rate limited")
	})

	t.Run("oversized body is refused", func(t *testing.T) {
		engine, _ := newImportAPI(t, 10, 16)

		w := postProducts(engine, body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeRequestTooLarge)
	})

	t.Run("preflight from the scraper origin", func(t *testing.T) {
		engine, _ := newImportAPI(t, 10, 1<<20)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/storefront/import", nil)
		req.Header.Set("Origin", "https://scraper.example.com")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://scraper.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("history and system routes", func(t *testing.T) {
		engine, _ := newImportAPI(t, 10, 1<<20)

		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/storefront/imports").Code)
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/system/info").Code)
	})
}
