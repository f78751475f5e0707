package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs a global tracer provider backed by an in-memory
// recorder for the duration of the test
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prevProvider, prevPropagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = provider.Shutdown(t.Context())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func findSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func tracedRouter(status int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	router.Use(Tracing("catalogsync"))
	router.Use(MarkSpan())
	router.GET("/import/runs", func(c *gin.Context) {
		c.JSON(status, gin.H{})
	})
	return router
}

func TestTracing_Disabled(t *testing.T) {
	sr := recordSpans(t)

	router := gin.New()
	router.Use(Tracing(""))
	router.GET("/import/runs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import/runs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RecordsRequestID(t *testing.T) {
	sr := recordSpans(t)

	w := httptest.NewRecorder()
	tracedRouter(http.StatusOK).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import/runs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	span := findSpan(t, sr, "GET /import/runs")
	assert.Contains(t, span.Attributes(), attribute.String("request_id", "req-42"))
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestMarkSpan(t *testing.T) {
	tests := []struct {
		status      int
		description string
	}{
		{http.StatusBadRequest, "Client Error"},
		{http.StatusNotFound, "Not Found"},
		{http.StatusTooManyRequests, "Too Many Requests"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := recordSpans(t)

			w := httptest.NewRecorder()
			tracedRouter(tt.status).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import/runs", nil))

			span := findSpan(t, sr, "GET /import/runs")
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.description, span.Status().Description)
		})
	}

	t.Run("server error", func(t *testing.T) {
		sr := recordSpans(t)

		w := httptest.NewRecorder()
		tracedRouter(http.StatusBadGateway).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import/runs", nil))

		span := findSpan(t, sr, "GET /import/runs")
		assert.Equal(t, codes.Error, span.Status().Code)
	})
}

func TestMarkSpan_WithoutSpan(t *testing.T) {
	router := gin.New()
	router.Use(MarkSpan())
	router.GET("/import/runs", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/import/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		status int
		desc   string
		failed bool
	}{
		{http.StatusOK, "", false},
		{http.StatusFound, "", false},
		{http.StatusUnprocessableEntity, "Client Error", true},
		{http.StatusNotFound, "Not Found", true},
		{http.StatusTooManyRequests, "Too Many Requests", true},
		{http.StatusServiceUnavailable, "Internal Server Error", true},
	}
	for _, tt := range tests {
		desc, failed := spanStatus(tt.status)
		assert.Equal(t, tt.failed, failed, tt.status)
		assert.Equal(t, tt.desc, desc, tt.status)
	}
}
