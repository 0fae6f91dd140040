package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiresInFromJWT reads the exp claim of an access token without verifying it.
// Returns 0 when the token is opaque or carries no exp.
func expiresInFromJWT(accessToken string, now time.Time) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	remaining := exp.Unix() - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}
