package clubauth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a renewal is needed but no refresh
	// token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrSessionExpired is returned when a renewal fails. Renewal failure is
	// terminal for the session: a rejected refresh token will fail
	// identically on retry, so the session is cleared instead.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx response from the backend. Detail carries the
// response body as plaintext.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Detail)
}
