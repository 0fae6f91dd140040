package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/sessions"
	fakesessionrepo "github.com/jrsteele09/go-auth-client/sessions/repofakes"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0)

// fakeAPI serves the token endpoint and a single resource handler, counting calls to each.
type fakeAPI struct {
	srv *httptest.Server

	refreshCalls  atomic.Int32
	resourceCalls atomic.Int32

	lock          sync.Mutex
	refreshStatus int
	refreshDelay  time.Duration
	resource      http.HandlerFunc
	lastRequest   *http.Request
	lastBody      []byte
	refreshTokens []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{refreshStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		api.refreshCalls.Add(1)
		var req oauthmodel.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		api.lock.Lock()
		api.refreshTokens = append(api.refreshTokens, req.Token)
		status, delay := api.refreshStatus, api.refreshDelay
		api.lock.Unlock()

		time.Sleep(delay)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(`{"access_token":"refreshed-token","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		api.resourceCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		api.lock.Lock()
		api.lastRequest = r
		api.lastBody = body
		handler := api.resource
		api.lock.Unlock()

		if handler == nil {
			w.Write([]byte(`{"data":{"id":"1","type":"users"}}`))
			return
		}
		handler(w, r)
	})
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) setResource(h http.HandlerFunc) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.resource = h
}

func (a *fakeAPI) setRefreshStatus(status int) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.refreshStatus = status
}

func (a *fakeAPI) request() (*http.Request, []byte) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.lastRequest, a.lastBody
}

type recordingNavigator struct {
	lock    sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) Targets() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.targets...)
}

type fixture struct {
	api       *fakeAPI
	store     *sessions.Store
	repo      *fakesessionrepo.FakeSessionRepo
	navigator *recordingNavigator
	gateway   *gateway.Gateway
}

func validState() sessions.State {
	return sessions.State{AccessToken: "valid-token", ExpiresIn: 3600, ExpirationSeconds: fixedNow.Unix() + 3600, LoggedIn: true}
}

func expiredState() sessions.State {
	return sessions.State{AccessToken: "expired-token", ExpiresIn: 3600, ExpirationSeconds: fixedNow.Unix() + 299, LoggedIn: true}
}

func setup(t *testing.T, initial sessions.State) *fixture {
	t.Helper()
	api := newFakeAPI(t)
	t.Setenv("API_URL", api.srv.URL)
	t.Setenv("ENV", "TEST")
	cfg := config.New()

	repo := fakesessionrepo.NewFakeSessionRepo()
	store := sessions.NewStore(initial)
	store.Subscribe(sessions.NewPersister(repo).Subscriber())

	nowFunc := func() time.Time { return fixedNow }
	nav := &recordingNavigator{}
	refresher := token.NewClient(cfg.GetAPIURL(), cfg, token.WithNowFunc(nowFunc))
	gw, err := gateway.New(cfg, store, refresher, nav, gateway.WithNowFunc(nowFunc))
	require.NoError(t, err)

	return &fixture{api: api, store: store, repo: repo, navigator: nav, gateway: gw}
}

func TestNew_MissingDependencies(t *testing.T) {
	cfg := config.New()
	store := sessions.NewStore(sessions.State{})
	refresher := token.NewClient("http://localhost", cfg)

	_, err := gateway.New(nil, store, refresher, nil)
	require.Error(t, err)
	_, err = gateway.New(cfg, nil, refresher, nil)
	require.Error(t, err)
	_, err = gateway.New(cfg, store, nil, nil)
	require.Error(t, err)
	_, err = gateway.New(cfg, store, refresher, nil)
	require.NoError(t, err)
}

func TestDo_ValidTokenSingleCall(t *testing.T) {
	f := setup(t, validState())

	resp, err := f.gateway.Do(t.Context(), gateway.RequestSpec{
		Method: http.MethodGet,
		Route:  "me",
		Query:  url.Values{"include": []string{"profile"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Data struct{ ID string } `json:"data"`
	}
	require.NoError(t, resp.Decode(&doc))
	require.Equal(t, "1", doc.Data.ID)

	require.Equal(t, int32(1), f.api.resourceCalls.Load())
	require.Equal(t, int32(0), f.api.refreshCalls.Load())

	req, _ := f.api.request()
	require.Equal(t, "/api/v1/me", req.URL.Path)
	require.Equal(t, "profile", req.URL.Query().Get("include"))
	require.Equal(t, "bearer valid-token", req.Header.Get("Authorization"))
	require.Equal(t, "application/vnd.api+json", req.Header.Get("Accept"))
	require.Empty(t, req.Header.Get("Content-Type"))
	require.NotEmpty(t, req.Header.Get("X-Request-ID"))
}

func TestDo_WriteMethodsSendContentType(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPatch, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			f := setup(t, validState())
			body := map[string]any{"data": map[string]any{"type": "posts", "attributes": map[string]any{"title": "hi"}}}

			_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: method, Route: "posts", Body: body})
			require.NoError(t, err)

			req, raw := f.api.request()
			require.Equal(t, method, req.Method)
			require.Equal(t, "application/vnd.api+json", req.Header.Get("Content-Type"))
			require.JSONEq(t, `{"data":{"type":"posts","attributes":{"title":"hi"}}}`, string(raw))
		})
	}
}

func TestDo_ExpiredTokenRefreshesFirst(t *testing.T) {
	f := setup(t, expiredState())

	_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
	require.NoError(t, err)

	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.resourceCalls.Load())
	require.Equal(t, []string{"expired-token"}, f.api.refreshTokens)

	req, _ := f.api.request()
	require.Equal(t, "bearer refreshed-token", req.Header.Get("Authorization"))

	state := f.store.State()
	require.Equal(t, "refreshed-token", state.AccessToken)
	require.Equal(t, fixedNow.Unix()+3600, state.ExpirationSeconds)
	require.Equal(t, "refreshed-token", f.repo.Snapshot()[sessions.KeyAccessToken])
	require.Equal(t, "1700003600", f.repo.Snapshot()[sessions.KeyExpirationSeconds])
}

func TestDo_NoProactiveRefreshForPostOrUsers(t *testing.T) {
	t.Run("POST", func(t *testing.T) {
		f := setup(t, expiredState())
		_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodPost, Route: "posts", Body: map[string]any{}})
		require.NoError(t, err)
		require.Equal(t, int32(0), f.api.refreshCalls.Load())
	})

	t.Run("users route", func(t *testing.T) {
		f := setup(t, expiredState())
		_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "users/1"})
		require.NoError(t, err)
		require.Equal(t, int32(0), f.api.refreshCalls.Load())
	})
}

func TestDo_UnauthorizedRefreshesAndRetriesOnce(t *testing.T) {
	f := setup(t, validState())
	f.api.setResource(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "bearer valid-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})

	resp, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "posts"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(2), f.api.resourceCalls.Load())
	require.Empty(t, f.navigator.Targets())
}

func TestDo_SecondUnauthorizedEndsSession(t *testing.T) {
	f := setup(t, validState())
	f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "posts"})
	require.ErrorIs(t, err, gateway.ErrSessionEnded)
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(2), f.api.resourceCalls.Load())
	require.Equal(t, []string{"/login"}, f.navigator.Targets())
	require.False(t, f.store.State().LoggedIn)
	require.Empty(t, f.repo.Snapshot())
}

func TestDo_ForbiddenRedirectsWithoutRefresh(t *testing.T) {
	f := setup(t, validState())
	f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "admin"})
	require.True(t, gateway.IsKind(err, gateway.Forbidden))
	require.Equal(t, int32(0), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.resourceCalls.Load())
	require.Equal(t, []string{"/"}, f.navigator.Targets())
	require.True(t, f.store.State().LoggedIn, "403 does not clear the session")
}

func TestDo_RefreshFailureAbandonsRequest(t *testing.T) {
	f := setup(t, expiredState())
	f.api.setRefreshStatus(http.StatusUnauthorized)

	resp, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
	require.Nil(t, resp)
	require.ErrorIs(t, err, gateway.ErrSessionEnded)

	var endpointErr *token.EndpointError
	require.True(t, errors.As(err, &endpointErr))
	require.Equal(t, int32(0), f.api.resourceCalls.Load())
	require.Equal(t, []string{"/login"}, f.navigator.Targets())
	require.Equal(t, sessions.State{}, f.store.State())
}

func TestDo_ConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	f := setup(t, expiredState())
	f.api.lock.Lock()
	f.api.refreshDelay = 50 * time.Millisecond
	f.api.lock.Unlock()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gateway.Do(context.Background(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(n), f.api.resourceCalls.Load())
}

func TestDo_CancelledCallerDoesNotEndSharedRefresh(t *testing.T) {
	f := setup(t, expiredState())
	f.api.lock.Lock()
	f.api.refreshDelay = 200 * time.Millisecond
	f.api.lock.Unlock()

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.gateway.Do(leaderCtx, gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return f.api.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		_, err := f.gateway.Do(context.Background(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
		followerErr <- err
	}()
	cancel()

	err := <-leaderErr
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, gateway.ErrSessionEnded)

	require.NoError(t, <-followerErr)
	require.Equal(t, int32(1), f.api.refreshCalls.Load())
	require.Equal(t, int32(1), f.api.resourceCalls.Load())
	require.Empty(t, f.navigator.Targets())

	state := f.store.State()
	require.True(t, state.LoggedIn)
	require.Equal(t, "refreshed-token", state.AccessToken)
}

func TestDo_CancelledContextSkipsRefresh(t *testing.T) {
	f := setup(t, expiredState())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.gateway.Do(ctx, gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(0), f.api.refreshCalls.Load())
	require.Empty(t, f.navigator.Targets())
	require.Equal(t, expiredState(), f.store.State())
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   gateway.ErrorKind
	}{
		{"validation", http.StatusUnprocessableEntity, `{"errors":[{"detail":"is taken","source":{"pointer":"/data/attributes/email"}}]}`, gateway.ValidationError},
		{"client", http.StatusNotFound, `not found`, gateway.ClientError},
		{"server", http.StatusInternalServerError, ``, gateway.ServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, validState())
			f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodPatch, Route: "users/1", Body: map[string]any{}})
			var apiErr *gateway.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.kind, apiErr.Kind)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Empty(t, f.navigator.Targets())
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	f := setup(t, validState())
	f.api.srv.Close()

	_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"})
	require.True(t, gateway.IsKind(err, gateway.NetworkError))
}

func TestDo_InvalidSpec(t *testing.T) {
	f := setup(t, validState())
	_, err := f.gateway.Do(t.Context(), gateway.RequestSpec{Method: http.MethodGet})
	require.Error(t, err)
	require.Equal(t, int32(0), f.api.resourceCalls.Load())
}

func TestCreateRequest_Callbacks(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		f := setup(t, validState())
		var got *gateway.Response
		f.gateway.CreateRequest(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"},
			func(r *gateway.Response) { got = r },
			func(err error) { t.Fatalf("unexpected error: %v", err) })
		require.NotNil(t, got)
	})

	t.Run("catch", func(t *testing.T) {
		f := setup(t, validState())
		f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		var caught error
		f.gateway.CreateRequest(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"}, nil,
			func(err error) { caught = err })
		require.True(t, gateway.IsKind(caught, gateway.ServerError))
	})

	t.Run("forbidden reaches no callback", func(t *testing.T) {
		f := setup(t, validState())
		f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		called := false
		f.gateway.CreateRequest(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"},
			func(*gateway.Response) { called = true },
			func(error) { called = true })
		require.False(t, called)
		require.Equal(t, []string{"/"}, f.navigator.Targets())
	})

	t.Run("no catch logs", func(t *testing.T) {
		f := setup(t, validState())
		f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		require.NotPanics(t, func() {
			f.gateway.CreateRequest(t.Context(), gateway.RequestSpec{Method: http.MethodGet, Route: "me"}, nil, nil)
		})
	})
}

func TestGet_SwallowsErrors(t *testing.T) {
	f := setup(t, validState())
	require.NotNil(t, f.gateway.Get(t.Context(), "me"))

	f.api.setResource(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.Nil(t, f.gateway.Get(t.Context(), "me"))
}
