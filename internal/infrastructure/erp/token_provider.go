package erp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/httpclient"
)

// tokenRefreshSkew renews a token this long before it actually expires
const tokenRefreshSkew = 30 * time.Second

// AccessToken is a bearer credential with its expiry
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be used at t
func (t AccessToken) ValidAt(at time.Time) bool {
	return t.Value != "" && at.Before(t.ExpiresAt.Add(-tokenRefreshSkew))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenProvider obtains client-credentials tokens and keeps the current one
// until it expires. It implements httpclient.Authorizer.
type TokenProvider struct {
	config   *SellsyConfig
	executor *httpclient.Executor
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	token AccessToken
}

var (
	_ httpclient.Authorizer  = (*TokenProvider)(nil)
	_ httpclient.Invalidator = (*TokenProvider)(nil)
)

// NewTokenProvider creates a provider posting to config.TokenURL through executor
func NewTokenProvider(config *SellsyConfig, executor *httpclient.Executor, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		config:   config,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

// Token returns a valid bearer token, fetching a new one when none is held
// or the held one expired. It never returns an empty token without an error.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.ValidAt(p.now()) {
		return p.token.Value, nil
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	return token.Value, nil
}

// Authorize sets the bearer header on req
func (p *TokenProvider) Authorize(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Invalidate drops the held token so the next call fetches a new one
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = AccessToken{}
}

func (p *TokenProvider) fetch(ctx context.Context) (AccessToken, error) {
	resp, err := p.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.config.TokenURL,
		Form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {p.config.ClientID},
			"client_secret": {p.config.ClientSecret},
		},
	})
	if err != nil {
		p.logger.Error("Failed to obtain Sellsy access token", zap.Error(err))
		return AccessToken{}, fmt.Errorf("%w: sellsy access token: %v", integration.ErrDependencyUnavailable, err)
	}

	var body tokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return AccessToken{}, fmt.Errorf("%w: sellsy access token: %v", integration.ErrDependencyUnavailable, err)
	}
	if body.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("%w: sellsy token response has no access_token", integration.ErrDependencyUnavailable)
	}

	ttl := p.config.TokenTTL
	if body.ExpiresIn > 0 {
		ttl = time.Duration(body.ExpiresIn) * time.Second
	}
	token := AccessToken{Value: body.AccessToken, ExpiresAt: p.now().Add(ttl)}

	p.logger.Info("New Sellsy access token acquired", zap.Time("expiry", token.ExpiresAt))
	return token, nil
}
