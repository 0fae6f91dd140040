package oauthmodel

import "errors"

var (
	ErrInvalidExpiresIn = errors.New("invalid expires_in")
	ErrUnsupportedGrant = errors.New("unsupported grant type")
)
