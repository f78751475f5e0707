// Package httpclient provides the rate-limit aware HTTP executor shared by the
// storefront and ERP adapters.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Policy controls how many times a call is attempted and how long to wait
// after a "too many requests" answer.
type Policy struct {
	MaxAttempts    int
	RateLimitDelay time.Duration
	// RetryTransportErrors also retries connection failures using RateLimitDelay
	RetryTransportErrors bool
}

// DefaultPolicy returns 3 attempts spaced by 3 seconds
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		RateLimitDelay: 3 * time.Second,
	}
}

// Request describes one logical platform call
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	// JSON is encoded as the request body when non-nil
	JSON any
	// Form is encoded as an urlencoded body when non-nil
	Form url.Values
	// Policy overrides the executor policy for this call when non-nil
	Policy *Policy
}

// Response is a fully read platform response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// DecodeJSON decodes the response body into v
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return nil
}

// Authorizer decorates outgoing requests with credentials
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// Invalidator is implemented by authorizers holding cached credentials that
// can be discarded after a 401
type Invalidator interface {
	Invalidate()
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs platform calls, retrying rate limited ones
type Executor struct {
	platform   integration.PlatformCode
	httpClient *http.Client
	policy     Policy
	headers    http.Header
	authorizer Authorizer
	logger     *zap.Logger
	metrics    *telemetry.PlatformMetrics
	sleep      Sleeper
}

// Option configures an Executor
type Option func(*Executor)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = c
	}
}

// WithPolicy sets the retry policy
func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		e.policy = p
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) Option {
	return func(e *Executor) {
		e.headers.Set(key, value)
	}
}

// WithAuthorizer sets the request authorizer
func WithAuthorizer(a Authorizer) Option {
	return func(e *Executor) {
		e.authorizer = a
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the platform metrics
func WithMetrics(m *telemetry.PlatformMetrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSleeper replaces the wait between attempts
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		e.sleep = s
	}
}

// New creates an Executor for the given platform
func New(platform integration.PlatformCode, opts ...Option) *Executor {
	e := &Executor{
		platform:   platform,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     DefaultPolicy(),
		headers:    http.Header{},
		logger:     zap.NewNop(),
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy.MaxAttempts < 1 {
		e.policy.MaxAttempts = 1
	}
	return e
}

// Platform returns the platform this executor talks to
func (e *Executor) Platform() integration.PlatformCode {
	return e.platform
}

// Do executes the request. A 2xx response is returned with a nil error. Any
// other final response is returned together with a *StatusError whose kind
// follows the status: 429 after every attempt is integration.ErrRateLimited,
// 422 is ErrValidationRejected, 404 ErrResourceNotFound. Transport failures
// wrap ErrDependencyUnavailable.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	policy := e.policy
	if req.Policy != nil {
		policy = *req.Policy
	}

	ctx, span := telemetry.StartClient(ctx, fmt.Sprintf("%s %s", strings.ToLower(e.platform.String()), req.Method),
		telemetry.KeyPlatform.String(e.platform.String()),
		telemetry.KeyURL.String(req.URL),
	)
	defer span.End()

	start := time.Now()
	reauthorized := false
	for attempt := 1; ; attempt++ {
		resp, err := e.send(ctx, req)
		last := attempt >= policy.MaxAttempts

		if err != nil {
			if ctx.Err() != nil {
				telemetry.RecordError(span, ctx.Err())
				return nil, ctx.Err()
			}
			if policy.RetryTransportErrors && !last {
				e.logger.Warn("Platform request failed, retrying",
					zap.String("platform", e.platform.String()),
					zap.String("method", req.Method),
					zap.String("url", req.URL),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				if serr := e.sleep(ctx, policy.RateLimitDelay); serr != nil {
					return nil, serr
				}
				continue
			}
			err = fmt.Errorf("%w: %s %s: %v", integration.ErrDependencyUnavailable, req.Method, req.URL, err)
			telemetry.RecordError(span, err)
			return nil, err
		}
		resp.Attempts = attempt

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && !last:
			e.metrics.RecordRetry(ctx, e.platform.String(), resp.StatusCode)
			e.logger.Warn("Platform rate limit hit, backing off",
				zap.String("platform", e.platform.String()),
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", policy.RateLimitDelay),
			)
			if serr := e.sleep(ctx, policy.RateLimitDelay); serr != nil {
				return nil, serr
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized && !reauthorized && !last:
			inv, ok := e.authorizer.(Invalidator)
			if !ok {
				break
			}
			reauthorized = true
			inv.Invalidate()
			e.logger.Info("Platform rejected credentials, refreshing",
				zap.String("platform", e.platform.String()),
			)
			continue
		}

		span.SetAttributes(
			telemetry.KeyStatusCode.Int(resp.StatusCode),
			telemetry.KeyAttempt.Int(attempt),
		)
		e.metrics.RecordRequest(ctx, e.platform.String(), req.Method, resp.StatusCode, time.Since(start))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			telemetry.SetOK(span)
			return resp, nil
		}

		serr := newStatusError(e.platform, req, resp)
		if resp.StatusCode == http.StatusTooManyRequests {
			e.metrics.RecordRateLimited(ctx, e.platform.String())
		}
		telemetry.RecordError(span, serr)
		return resp, serr
	}
}

func (e *Executor) send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range e.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if e.authorizer != nil {
		if err := e.authorizer.Authorize(ctx, httpReq); err != nil {
			return nil, err
		}
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
