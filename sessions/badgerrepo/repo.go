// Package badgerrepo stores session keys in an embedded Badger database.
package badgerrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// keyPrefix namespaces session keys inside the database.
const keyPrefix = "session:"

var _ sessions.Repo = (*Repo)(nil)

type Repo struct {
	db *badger.DB
}

// Open opens (or creates) the database in dir.
func Open(dir string) (*Repo, error) {
	if dir == "" {
		return nil, fmt.Errorf("badgerrepo: dir is required")
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: log.Logger.With().Str("component", "badger").Logger()}
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerrepo: open db: %w", err)
	}
	return &Repo{db: db}, nil
}

// OpenInMemory opens a non-persistent database, used in tests.
func OpenInMemory() (*Repo, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerrepo: open in-memory db: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Get(_ context.Context, key string) (string, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", sessions.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badgerrepo: get %s: %w", key, err)
	}
	return string(value), nil
}

func (r *Repo) Set(_ context.Context, key, value string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
}

func (r *Repo) Delete(_ context.Context, key string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

func (r *Repo) Close() error {
	return r.db.Close()
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
