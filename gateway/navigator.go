package gateway

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Navigator sends the user to an unauthenticated entry point, e.g. after a 403 or
// when the session could not be refreshed.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string)

func (f NavigatorFunc) Navigate(ctx context.Context, target string) {
	f(ctx, target)
}

// LogNavigator only records the redirect; used by non-interactive callers.
type LogNavigator struct{}

func (LogNavigator) Navigate(_ context.Context, target string) {
	log.Warn().Str("target", target).Msg("Redirecting to unauthenticated entry point")
}
