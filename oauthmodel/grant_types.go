package oauthmodel

// GrantType represents the grant type sent to the token endpoint.
// Determines which credentials accompany the request.
type GrantType string

const (
	// PasswordGrant exchanges a user's email and password for an access token.
	// Token request includes: username, password
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges the current (possibly expired) access token for a new one.
	// Token request includes: token
	RefreshTokenGrant GrantType = "refresh_token"
)

func (g GrantType) Valid() bool {
	switch g {
	case PasswordGrant, RefreshTokenGrant:
		return true
	}
	return false
}
