package config

import "time"

type SessionConfig interface {
	GetTokenExpiryBuffer() time.Duration
	GetUsersRoute() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetTokenExpiryBuffer() time.Duration {
	return time.Duration(GetEnvInt("TOKEN_EXPIRY_BUFFER", 300)) * time.Second
}

// GetUsersRoute is the route segment for login/user-creation calls, which never trigger a proactive refresh.
func (Session) GetUsersRoute() string {
	return GetEnv("USERS_ROUTE", "users")
}
