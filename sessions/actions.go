package sessions

import "time"

// Action is a state transition request handled by Reduce.
type Action interface {
	actionName() string
}

// LoginStart marks the start of a login attempt.
type LoginStart struct {
	Email    string
	Password string
}

// LoginSuccess carries a freshly obtained token. Build it with NewLoginSuccess so the
// absolute expiration is fixed at the moment the token was received.
type LoginSuccess struct {
	AccessToken       string
	ExpiresIn         int
	ExpirationSeconds int64
}

// LoginFailure ends a login attempt unsuccessfully.
type LoginFailure struct {
	Err error
}

// Logout clears the session.
type Logout struct{}

func (LoginStart) actionName() string   { return "login_start" }
func (LoginSuccess) actionName() string { return "login_success" }
func (LoginFailure) actionName() string { return "login_failure" }
func (Logout) actionName() string       { return "logout" }

// ActionName returns the wire-style name of an action, used for logging.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}

func NewLoginSuccess(accessToken string, expiresIn int, now time.Time) LoginSuccess {
	return LoginSuccess{
		AccessToken:       accessToken,
		ExpiresIn:         expiresIn,
		ExpirationSeconds: now.Unix() + int64(expiresIn),
	}
}
