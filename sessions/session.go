package sessions

import "time"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiryBuffer is how long before the real expiration a token is already treated as expired.
const ExpiryBuffer = 300 * time.Second

// Phase is the login state derived from the flags on State.
type Phase string

const (
	Anonymous     Phase = "anonymous"
	LoggingIn     Phase = "logging_in"
	Authenticated Phase = "authenticated"
	LoginFailed   Phase = "login_failed"
)

// State is the client's authentication state.
// One State is held per Store; its token fields mirror the durable storage copy.
type State struct {
	AccessToken       string // Bearer token, "" when unset
	ExpiresIn         int    // Token lifetime in seconds as reported by the token endpoint
	ExpirationSeconds int64  // Absolute expiry (epoch seconds), now + ExpiresIn when the token was obtained
	LoggedIn          bool
	Loading           bool // True between LoginStart and its success/failure
	Error             bool // Last login attempt failed
}

func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return LoggingIn
	case s.LoggedIn:
		return Authenticated
	case s.Error:
		return LoginFailed
	}
	return Anonymous
}

// IsExpired reports whether the token is expired or within ExpiryBuffer of expiring.
// A state with no expiration is always expired.
func (s State) IsExpired(now time.Time) bool {
	return s.IsExpiredWithin(now, ExpiryBuffer)
}

func (s State) IsExpiredWithin(now time.Time, buffer time.Duration) bool {
	return now.Unix() >= s.ExpirationSeconds-int64(buffer/time.Second)
}

// ExpiresAt returns the absolute expiry, or the zero time if unset.
func (s State) ExpiresAt() time.Time {
	if s.ExpirationSeconds == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpirationSeconds, 0)
}

func (s State) clearTokens() State {
	s.AccessToken = ""
	s.ExpiresIn = 0
	s.ExpirationSeconds = 0
	return s
}
