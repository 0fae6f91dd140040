package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/sessions"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var ErrNoAccessToken = errors.New("token response has no access_token")

// EndpointError is returned when the token endpoint answers with a non-2xx status.
type EndpointError struct {
	StatusCode int
	Body       string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the token endpoint for the password and refresh grants.
type Client struct {
	tokenURL   string
	httpClient *http.Client
	nowFunc    func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// NewClient creates a token endpoint client for the API at baseURL.
func NewClient(baseURL string, cfg config.APIConfig, opts ...ClientOption) *Client {
	c := &Client{
		tokenURL:   baseURL + cfg.GetTokenPath(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		nowFunc:    func() time.Time { return NowTimeFunc() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Password exchanges a user's credentials for a token.
func (c *Client) Password(ctx context.Context, email, password string) (*oauth2.Token, error) {
	return c.exchange(ctx, oauthmodel.NewPasswordRequest(email, password))
}

// Refresh exchanges the current, possibly expired, access token for a new one.
func (c *Client) Refresh(ctx context.Context, accessToken string) (*oauth2.Token, error) {
	return c.exchange(ctx, oauthmodel.NewRefreshRequest(accessToken))
}

func (c *Client) exchange(ctx context.Context, tokenRequest oauthmodel.TokenRequest) (*oauth2.Token, error) {
	if err := tokenRequest.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(tokenRequest)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s grant: %w", tokenRequest.GrantType, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &EndpointError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var tokenResponse oauthmodel.TokenResponse
	if err := json.Unmarshal(respBody, &tokenResponse); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	return c.toToken(tokenResponse), nil
}

func (c *Client) toToken(tr oauthmodel.TokenResponse) *oauth2.Token {
	now := c.nowFunc()
	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresIn:   int64(tr.ExpiresIn),
	}
	if tok.ExpiresIn == 0 {
		tok.ExpiresIn = expiresInFromJWT(tr.AccessToken, now)
	}
	if tok.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return tok
}

// LoginSuccess converts a token into the session action that stores it.
func LoginSuccess(tok *oauth2.Token) sessions.LoginSuccess {
	a := sessions.LoginSuccess{
		AccessToken: tok.AccessToken,
		ExpiresIn:   int(tok.ExpiresIn),
	}
	if !tok.Expiry.IsZero() {
		a.ExpirationSeconds = tok.Expiry.Unix()
	}
	return a
}
