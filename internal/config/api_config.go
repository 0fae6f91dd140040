package config

import "time"

type APIConfig interface {
	GetTokenPath() string
	GetResourcePrefix() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

func (API) GetTokenPath() string {
	return "/api/oauth/token"
}

func (API) GetResourcePrefix() string {
	return "/api/v1/"
}

// GetRequestTimeout returns 0 unless REQUEST_TIMEOUT is set; outbound calls are not timed out by default.
func (API) GetRequestTimeout() time.Duration {
	return time.Duration(GetEnvInt("REQUEST_TIMEOUT", 0)) * time.Second
}
