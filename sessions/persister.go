package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Persister keeps a Repo in step with the token fields of a Store.
// It runs as a Store subscriber, after the reduction has been applied.
type Persister struct {
	repo Repo
}

func NewPersister(repo Repo) *Persister {
	return &Persister{repo: repo}
}

// Subscriber returns the function to register with Store.Subscribe.
func (p *Persister) Subscriber() Subscriber {
	return func(ctx context.Context, _, next State, action Action) {
		var err error
		switch action.(type) {
		case LoginSuccess:
			err = p.Save(ctx, next)
		case LoginFailure, Logout:
			err = p.Purge(ctx)
		default:
			return
		}
		if err != nil {
			log.Err(err).Str("action", ActionName(action)).Msg("Failed to persist session")
		}
	}
}

// Save writes the token fields of s.
func (p *Persister) Save(ctx context.Context, s State) error {
	items := []struct{ key, value string }{
		{KeyAccessToken, s.AccessToken},
		{KeyExpiresIn, strconv.Itoa(s.ExpiresIn)},
		{KeyExpirationSeconds, strconv.FormatInt(s.ExpirationSeconds, 10)},
	}
	for _, item := range items {
		if err := p.repo.Set(ctx, item.key, item.value); err != nil {
			return fmt.Errorf("failed to save %s: %w", item.key, err)
		}
	}
	return nil
}

// Purge removes every token key.
func (p *Persister) Purge(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyExpiresIn, KeyExpirationSeconds} {
		if err := p.repo.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Load hydrates a State from repo. Missing or malformed values are treated as unset.
func Load(ctx context.Context, repo Repo) (State, error) {
	var s State

	token, err := getOptional(ctx, repo, KeyAccessToken)
	if err != nil {
		return State{}, err
	}
	expiresIn, err := getOptional(ctx, repo, KeyExpiresIn)
	if err != nil {
		return State{}, err
	}
	expiration, err := getOptional(ctx, repo, KeyExpirationSeconds)
	if err != nil {
		return State{}, err
	}

	if token == "" {
		return s, nil
	}
	s.AccessToken = token
	s.ExpiresIn, _ = strconv.Atoi(expiresIn)
	s.ExpirationSeconds, _ = strconv.ParseInt(expiration, 10, 64)
	s.LoggedIn = true
	return s, nil
}

// Open hydrates a Store from repo and attaches a Persister to it.
func Open(ctx context.Context, repo Repo) (*Store, error) {
	initial, err := Load(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("[sessions Open] failed to load session: %w", err)
	}
	store := NewStore(initial)
	store.Subscribe(NewPersister(repo).Subscriber())
	return store, nil
}

func getOptional(ctx context.Context, repo Repo, key string) (string, error) {
	v, err := repo.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}
