package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrSessionEnded is returned when a request was abandoned because the session could not
// be refreshed. By then the session has been cleared and the user redirected.
var ErrSessionEnded = autherrors.ErrSessionEnded

// Refresher exchanges the current access token for a new one.
type Refresher interface {
	Refresh(ctx context.Context, accessToken string) (*oauth2.Token, error)
}

// Gateway issues authenticated API calls on behalf of a session.
type Gateway struct {
	baseURL    string
	cfg        config.Config
	store      *sessions.Store
	refresher  Refresher
	navigator  Navigator
	httpClient *http.Client
	nowFunc    func() time.Time

	refreshGroup singleflight.Group
}

type Option func(*Gateway)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = httpClient
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gateway) {
		g.nowFunc = now
	}
}

func New(cfg config.Config, store *sessions.Store, refresher Refresher, navigator Navigator, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("[gateway New] config is required")
	}
	if store == nil {
		return nil, errors.New("[gateway New] session store is required")
	}
	if refresher == nil {
		return nil, errors.New("[gateway New] refresher is required")
	}
	if navigator == nil {
		navigator = LogNavigator{}
	}

	g := &Gateway{
		baseURL:   cfg.GetAPIURL(),
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		navigator: navigator,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = NewHTTPClient(cfg)
	}
	return g, nil
}

// Do performs the call described by spec.
//
// An expired token is refreshed before the call (except for POSTs and user-creation routes).
// A 401 triggers one refresh and one retry; a 401 on the retry ends the session.
// A 403 redirects to the forbidden entry point without retrying.
// If a refresh fails the session is cleared, the user redirected and ErrSessionEnded returned.
func (g *Gateway) Do(ctx context.Context, spec RequestSpec) (*Response, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	if g.needsProactiveRefresh(spec) {
		if err := g.refresh(ctx, g.store.State().AccessToken); err != nil {
			return nil, err
		}
	}

	accessToken := g.store.State().AccessToken
	resp, err := g.send(ctx, spec, accessToken)
	if !IsKind(err, AuthExpired) {
		return g.finish(ctx, resp, err)
	}

	if err := g.refresh(ctx, accessToken); err != nil {
		return nil, err
	}
	resp, err = g.send(ctx, spec, g.store.State().AccessToken)
	if IsKind(err, AuthExpired) {
		return nil, g.endSession(ctx, fmt.Errorf("%s %s rejected after refresh: %w", spec.method(), spec.Route, err))
	}
	return g.finish(ctx, resp, err)
}

// CreateRequest is the callback form of Do. resolve receives successful responses. Errors go to
// catch, or are logged when catch is nil. Forbidden responses and ended sessions have already
// redirected the user and reach neither callback.
func (g *Gateway) CreateRequest(ctx context.Context, spec RequestSpec, resolve func(*Response), catch func(error)) {
	resp, err := g.Do(ctx, spec)
	if err == nil {
		if resolve != nil {
			resolve(resp)
		}
		return
	}

	if errors.Is(err, ErrSessionEnded) || IsKind(err, Forbidden) {
		log.Debug().Err(err).Str("route", spec.Route).Msg("request abandoned")
		return
	}
	if catch != nil {
		catch(err)
		return
	}
	log.Err(err).Str("method", spec.method()).Str("route", spec.Route).Msg("Request failed")
}

// Get performs a GET and logs any error instead of returning it.
func (g *Gateway) Get(ctx context.Context, route string) *Response {
	resp, err := g.Do(ctx, RequestSpec{Method: http.MethodGet, Route: route})
	if err != nil {
		log.Err(err).Str("route", route).Msg("GET failed")
		return nil
	}
	return resp
}

func (g *Gateway) needsProactiveRefresh(spec RequestSpec) bool {
	if strings.Contains(spec.Route, g.cfg.GetUsersRoute()) || spec.method() == http.MethodPost {
		return false
	}
	return g.isExpired(g.store.State())
}

func (g *Gateway) isExpired(state sessions.State) bool {
	return state.IsExpiredWithin(g.nowFunc(), g.cfg.GetTokenExpiryBuffer())
}

// refresh exchanges stale for a new token. Concurrent callers share a single refresh call,
// which runs detached from any one caller's context. A caller whose context ends while waiting
// gets its context error back and the session is left untouched.
// If another caller already replaced stale with a live token, no call is made.
func (g *Gateway) refresh(ctx context.Context, stale string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	results := g.refreshGroup.DoChan("refresh", func() (any, error) {
		return nil, g.refreshSession(context.WithoutCancel(ctx), stale)
	})
	select {
	case <-ctx.Done():
		log.Debug().Err(ctx.Err()).Msg("stopped waiting for token refresh")
		return ctx.Err()
	case res := <-results:
		if res.Shared {
			log.Debug().Msg("joined in-flight token refresh")
		}
		return res.Err
	}
}

func (g *Gateway) refreshSession(ctx context.Context, stale string) error {
	state := g.store.State()
	if state.AccessToken != "" && state.AccessToken != stale && !g.isExpired(state) {
		return nil
	}

	tok, err := g.refresher.Refresh(ctx, state.AccessToken)
	if err != nil {
		return g.endSession(ctx, fmt.Errorf("%w: %w", autherrors.ErrRefreshFailed, err))
	}

	action := token.LoginSuccess(tok)
	if action.ExpirationSeconds == 0 && action.ExpiresIn > 0 {
		action = sessions.NewLoginSuccess(action.AccessToken, action.ExpiresIn, g.nowFunc())
	}
	g.store.Dispatch(ctx, action)
	log.Debug().Int("expires_in", action.ExpiresIn).Msg("access token refreshed")
	return nil
}

// endSession clears the session, redirects and returns ErrSessionEnded wrapping cause.
func (g *Gateway) endSession(ctx context.Context, cause error) error {
	log.Err(cause).Msg("Ending session")
	g.store.Dispatch(ctx, sessions.Logout{})
	g.navigator.Navigate(ctx, g.cfg.GetSessionEndedRedirect())
	return fmt.Errorf("%w: %w", ErrSessionEnded, cause)
}

func (g *Gateway) finish(ctx context.Context, resp *Response, err error) (*Response, error) {
	if IsKind(err, Forbidden) {
		g.navigator.Navigate(ctx, g.cfg.GetForbiddenRedirect())
	}
	return resp, err
}

func (g *Gateway) send(ctx context.Context, spec RequestSpec, accessToken string) (*Response, error) {
	method := spec.method()
	body, err := encodeBody(spec.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.resourceURL(spec), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+accessToken)
	req.Header.Set("Accept", jsonAPIContentType)
	if isWrite(method) {
		req.Header.Set("Content-Type", jsonAPIContentType)
	}

	httpResp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: NetworkError, Method: method, Route: spec.Route, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{Kind: NetworkError, Method: method, Route: spec.Route, StatusCode: httpResp.StatusCode, Err: err}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newStatusError(method, spec.Route, httpResp.StatusCode, respBody)
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}, nil
}
