package clubauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpirySkew is the safety margin subtracted from a token's real expiry.
// A token inside the skew window is renewed before use so that a request is
// never dispatched with a credential that could expire mid-flight.
const ExpirySkew = 30 * time.Second

// TokenPair holds an access token and the refresh token used to renew it.
// The access token is a short-lived JWT; the refresh token is opaque and is
// presented only to the renewal endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenExpiry decodes the access token without verifying its signature and
// returns the expiry instant from its claims. The signature is the backend's
// concern; the client only needs the expiry to schedule renewal.
func TokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read expiry claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}

	return exp.Time, nil
}

// IsExpired reports whether the access token is expired or will expire
// within ExpirySkew. A token that cannot be decoded is treated as already
// expired, never as valid.
func IsExpired(token string) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return time.Now().Add(ExpirySkew).After(exp)
}
