package sessions

import (
	"context"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Durable storage keys for the session's token fields.
const (
	KeyAccessToken       = "accessToken"
	KeyExpiresIn         = "expiresIn"
	KeyExpirationSeconds = "expirationSeconds"
)

// ErrKeyNotFound is returned by Repo.Get for a missing key.
var ErrKeyNotFound = autherrors.ErrKeyNotFound

// Repo is the durable local key-value storage backing a session.
// Values are strings; integers are stored in decimal form.
type Repo interface {
	// Get returns the value for key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
