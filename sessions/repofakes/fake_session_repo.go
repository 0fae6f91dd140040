package fakesessionrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		values: make(map[string]string),
	}
}

func (sr *FakeSessionRepo) Get(_ context.Context, key string) (string, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	v, ok := sr.values[key]
	if !ok {
		return "", sessions.ErrKeyNotFound
	}
	return v, nil
}

func (sr *FakeSessionRepo) Set(_ context.Context, key, value string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	sr.values[key] = value
	return nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, key string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	delete(sr.values, key)
	return nil
}

// Snapshot returns a copy of every stored key, for assertions.
func (sr *FakeSessionRepo) Snapshot() map[string]string {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	out := make(map[string]string, len(sr.values))
	for k, v := range sr.values {
		out[k] = v
	}
	return out
}
