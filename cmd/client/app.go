package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/badgerrepo"
	"github.com/jrsteele09/go-auth-client/token"
)

// app wires the session store, login service and gateway for one CLI invocation.
type app struct {
	config  config.Config
	repo    *badgerrepo.Repo
	store   *sessions.Store
	login   *auth.LoginService
	gateway *gateway.Gateway
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	repo, err := badgerrepo.Open(c.GetDataFolder())
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}

	store, err := sessions.Open(ctx, repo)
	if err != nil {
		repo.Close()
		return nil, err
	}

	httpClient := gateway.NewHTTPClient(c)
	tokens := token.NewClient(c.GetAPIURL(), c, token.WithHTTPClient(httpClient))

	login, err := auth.NewLoginService(store, tokens)
	if err != nil {
		repo.Close()
		return nil, err
	}

	gw, err := gateway.New(c, store, tokens, gateway.LogNavigator{}, gateway.WithHTTPClient(httpClient))
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &app{config: c, repo: repo, store: store, login: login, gateway: gw}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}
