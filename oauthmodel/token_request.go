package oauthmodel

import (
	"encoding/json"
	"fmt"
)

// TokenRequest is the JSON body posted to the token endpoint.
// Supports the password and refresh_token grants.
type TokenRequest struct {
	GrantType GrantType `json:"grant_type"`

	// Username is the user's email address.
	// Required: Yes (only for password grant)
	Username string `json:"username,omitempty"`

	// Password is the user's password.
	// Required: Yes (only for password grant)
	// Security: Never log or expose this value
	Password string `json:"password,omitempty"`

	// Token is the current access token being exchanged.
	// Required: Yes (only for refresh_token grant)
	// Note: The token may already be expired, the server decides whether it can still be refreshed
	Token string `json:"token,omitempty"`
}

func NewPasswordRequest(email, password string) TokenRequest {
	return TokenRequest{GrantType: PasswordGrant, Username: email, Password: password}
}

func NewRefreshRequest(accessToken string) TokenRequest {
	return TokenRequest{GrantType: RefreshTokenGrant, Token: accessToken}
}

// MarshalJSON always writes the token key for the refresh grant, even when it is empty.
func (r TokenRequest) MarshalJSON() ([]byte, error) {
	type wire TokenRequest
	if r.GrantType != RefreshTokenGrant {
		return json.Marshal(wire(r))
	}
	return json.Marshal(struct {
		wire
		Token string `json:"token"`
	}{wire: wire(r), Token: r.Token})
}

func (r TokenRequest) Validate() error {
	if !r.GrantType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedGrant, r.GrantType)
	}
	return nil
}
