package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/domain/integration"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestExecutor(t *testing.T, rec *sleepRecorder, opts ...Option) *Executor {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithSleeper(rec.sleep),
	}
	return New(integration.PlatformCodeShopify, append(base, opts...)...)
}

// statusSequence serves the given statuses in order, repeating the last one
func statusSequence(statuses ...int) (http.HandlerFunc, *int32) {
	var hits int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, &hits
}

func TestExecutor_Do_Success(t *testing.T) {
	handler, hits := statusSequence(http.StatusOK)
	server := httptest.NewServer(handler)
	defer server.Close()

	rec := &sleepRecorder{}
	exec := newTestExecutor(t, rec)

	resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, rec.delays)

	var body struct{ OK bool }
	require.NoError(t, resp.DecodeJSON(&body))
	assert.True(t, body.OK)
}

func TestExecutor_Do_RetriesRateLimit(t *testing.T) {
	handler, hits := statusSequence(http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK)
	server := httptest.NewServer(handler)
	defer server.Close()

	rec := &sleepRecorder{}
	exec := newTestExecutor(t, rec)

	resp, err := exec.Do(context.Background(), Request{Method: http.MethodPut, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, rec.delays)
}

func TestExecutor_Do_RateLimitExhausted(t *testing.T) {
	handler, hits := statusSequence(http.StatusTooManyRequests)
	server := httptest.NewServer(handler)
	defer server.Close()

	rec := &sleepRecorder{}
	exec := newTestExecutor(t, rec)

	resp, err := exec.Do(context.Background(), Request{Method: http.MethodPut, URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrRateLimited)
	assert.Equal(t, integration.FailureRateLimited, integration.ClassifyFailure(err))
	require.NotNil(t, resp)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Len(t, rec.delays, 2)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExecutor_Do_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"validation rejected", http.StatusUnprocessableEntity, integration.ErrValidationRejected},
		{"not found", http.StatusNotFound, integration.ErrResourceNotFound},
		{"server error", http.StatusInternalServerError, integration.ErrUnclassified},
		{"bad request", http.StatusBadRequest, integration.ErrUnclassified},
		{"unavailable", http.StatusServiceUnavailable, integration.ErrUnclassified},
		{"bad gateway", http.StatusBadGateway, integration.ErrUnclassified},
		{"forbidden", http.StatusForbidden, integration.ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, hits := statusSequence(tt.status)
			server := httptest.NewServer(handler)
			defer server.Close()

			rec := &sleepRecorder{}
			exec := newTestExecutor(t, rec)

			resp, err := exec.Do(context.Background(), Request{Method: http.MethodPost, URL: server.URL})
			assert.ErrorIs(t, err, tt.want)
			require.NotNil(t, resp)
			assert.Equal(t, int32(1), atomic.LoadInt32(hits), "non rate limited statuses are never retried")

			code, ok := StatusCode(err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, code)
		})
	}
}

func TestExecutor_Do_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	t.Run("not retried by default", func(t *testing.T) {
		rec := &sleepRecorder{}
		exec := newTestExecutor(t, rec)

		_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, URL: addr})
		assert.ErrorIs(t, err, integration.ErrDependencyUnavailable)
		assert.Empty(t, rec.delays)
	})

	t.Run("retried when the policy allows it", func(t *testing.T) {
		rec := &sleepRecorder{}
		exec := newTestExecutor(t, rec)
		policy := DefaultPolicy()
		policy.RetryTransportErrors = true

		_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, URL: addr, Policy: &policy})
		assert.ErrorIs(t, err, integration.ErrDependencyUnavailable)
		assert.Len(t, rec.delays, 2)
	})
}

func TestExecutor_Do_CancelledDuringBackoff(t *testing.T) {
	handler, hits := statusSequence(http.StatusTooManyRequests)
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	exec := New(integration.PlatformCodeShopify,
		WithLogger(zaptest.NewLogger(t)),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := exec.Do(ctx, Request{Method: http.MethodGet, URL: server.URL})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestExecutor_Do_EncodesRequest(t *testing.T) {
	var (
		gotMethod, gotQuery, gotToken, gotType string
		gotJSON                                map[string]any
		gotForm                                url.Values
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		gotType = r.Header.Get("Content-Type")
		if gotType == "application/json" {
			_ = json.NewDecoder(r.Body).Decode(&gotJSON)
		} else {
			_ = r.ParseForm()
			gotForm = r.PostForm
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := newTestExecutor(t, &sleepRecorder{}, WithHeader("X-Shopify-Access-Token", "shpat_test"))

	_, err := exec.Do(context.Background(), Request{
		Method: http.MethodPut,
		URL:    server.URL + "/variants/1.json",
		Query:  url.Values{"fields": {"id,variants"}},
		JSON:   map[string]any{"variant": map[string]any{"id": 1, "price": "5.00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "fields=id%2Cvariants", gotQuery)
	assert.Equal(t, "shpat_test", gotToken)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "5.00", gotJSON["variant"].(map[string]any)["price"])

	_, err = exec.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Form:   url.Values{"grant_type": {"client_credentials"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "client_credentials", gotForm.Get("grant_type"))
}

type countingAuthorizer struct {
	authorized  int
	invalidated int
}

func (a *countingAuthorizer) Authorize(_ context.Context, req *http.Request) error {
	a.authorized++
	if a.invalidated > 0 {
		req.Header.Set("Authorization", "Bearer fresh")
	} else {
		req.Header.Set("Authorization", "Bearer stale")
	}
	return nil
}

func (a *countingAuthorizer) Invalidate() {
	a.invalidated++
}

func TestExecutor_Do_RefreshesCredentialsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	auth := &countingAuthorizer{}
	exec := newTestExecutor(t, &sleepRecorder{}, WithAuthorizer(auth))

	resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, auth.invalidated)
	assert.Equal(t, 2, auth.authorized)
}

func TestExecutor_Do_RefreshCountsAgainstAttempts(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []int
		wantStatus  int
		wantErr     error
		invalidated int
	}{
		{
			name:        "401 on the last attempt is returned",
			statuses:    []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusTooManyRequests},
			wantStatus:  http.StatusUnauthorized,
			wantErr:     integration.ErrUnclassified,
			invalidated: 0,
		},
		{
			name:        "refresh between rate limits",
			statuses:    []int{http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusOK},
			wantStatus:  http.StatusTooManyRequests,
			wantErr:     integration.ErrRateLimited,
			invalidated: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, hits := statusSequence(tt.statuses...)
			server := httptest.NewServer(handler)
			defer server.Close()

			rec := &sleepRecorder{}
			auth := &countingAuthorizer{}
			exec := newTestExecutor(t, rec, WithAuthorizer(auth))

			resp, err := exec.Do(context.Background(), Request{Method: http.MethodPut, URL: server.URL})
			assert.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, 3, resp.Attempts)
			assert.Equal(t, int32(3), atomic.LoadInt32(hits))
			assert.Equal(t, tt.invalidated, auth.invalidated)
		})
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
