package oauthmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TokenResponse is the token endpoint's response for both grants.
type TokenResponse struct {
	// AccessToken is the bearer credential sent on every API call.
	// Usage: Include in Authorization header: "bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType is usually "bearer". Not required by the client.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Some servers send it as a string ("3600"), both forms are accepted.
	ExpiresIn Seconds `json:"expires_in,omitempty"`
}

// Seconds is an integer number of seconds that unmarshals from a JSON number or numeric string.
type Seconds int

func (s *Seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*s = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		b = []byte(str)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return fmt.Errorf("%w: %s", ErrInvalidExpiresIn, b)
	}
	*s = Seconds(n)
	return nil
}
