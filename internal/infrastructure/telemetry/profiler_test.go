package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestStartProfiler_Disabled(t *testing.T) {
	p, err := StartProfiler(ProfilerConfig{ServerAddress: "http://localhost:4040"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestStartProfiler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProfilerConfig
		wantErr string
	}{
		{"no server", ProfilerConfig{Enabled: true, ApplicationName: "catalogsync"}, "server address is required"},
		{"no application", ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, "application name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := StartProfiler(tt.cfg, zaptest.NewLogger(t))
			assert.Nil(t, p)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStartProfiler_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping profiler agent test in short mode")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, err := StartProfiler(ProfilerConfig{
		Enabled:         true,
		ServerAddress:   server.URL,
		ApplicationName: "catalogsync.test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestProviders_EnableSpanProfiles(t *testing.T) {
	t.Run("tracing off", func(t *testing.T) {
		p := &Providers{logger: zaptest.NewLogger(t)}
		assert.False(t, p.EnableSpanProfiles())
	})

	t.Run("wraps the tracer provider", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		original := otel.GetTracerProvider()
		t.Cleanup(func() {
			otel.SetTracerProvider(original)
			_ = tp.Shutdown(context.Background())
		})

		p := &Providers{traces: tp, tracing: tp, logger: zaptest.NewLogger(t)}
		require.True(t, p.EnableSpanProfiles())
		assert.Equal(t, p.tracing, otel.GetTracerProvider())

		_, span := Start(context.Background(), "reconcile.prices")
		span.End()

		ended := sr.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, "reconcile.prices", ended[0].Name())
	})
}
