package clients

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// TokenConfig configures a refresh-token grant against a vendor auth
// endpoint.
type TokenConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string

	// RefreshThreshold refreshes the cached token this long before it
	// expires.
	RefreshThreshold time.Duration
}

// TokenIssuer exchanges a long-lived refresh token for access tokens
// and caches them until near expiry. Safe for concurrent use; only one
// refresh runs at a time.
type TokenIssuer struct {
	config     *TokenConfig
	httpClient *HTTPClient
	logger     *zap.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(config *TokenConfig, httpClient *HTTPClient, logger *zap.Logger) *TokenIssuer {
	if config.RefreshThreshold == 0 {
		config.RefreshThreshold = 5 * time.Minute
	}
	return &TokenIssuer{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "token_issuer")),
	}
}

// Token returns a valid access token, refreshing if the cached one is
// missing or about to expire.
func (ti *TokenIssuer) Token(ctx context.Context) (string, error) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if ti.current != nil && time.Until(ti.current.Expiry) > ti.config.RefreshThreshold {
		return ti.current.AccessToken, nil
	}

	token, err := ti.refresh(ctx)
	if err != nil {
		return "", err
	}
	ti.current = token
	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (ti *TokenIssuer) Invalidate() {
	ti.mu.Lock()
	ti.current = nil
	ti.mu.Unlock()
}

func (ti *TokenIssuer) refresh(ctx context.Context) (*oauth2.Token, error) {
	if ti.config.RefreshToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "no refresh token configured")
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {ti.config.RefreshToken},
		"client_id":     {ti.config.ClientID},
		"client_secret": {ti.config.ClientSecret},
	}

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}

	resp, err := ti.httpClient.Post(ctx, ti.config.TokenURL, strings.NewReader(params.Encode()), headers)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransient, "token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errType := errors.ErrorTypeAuth
		if resp.StatusCode >= 500 {
			errType = errors.ErrorTypeTransient
		}
		return nil, errors.New(errType, "token endpoint rejected request").
			WithDetail("status", resp.StatusCode).
			WithDetail("body", string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeVendor, "decode token response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeVendor, "token response missing access_token")
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	token := &oauth2.Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	ti.logger.Info("access token acquired", zap.Time("expires_at", token.Expiry))
	return token, nil
}
