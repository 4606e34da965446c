package clubauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

type refreshResult struct {
	token string
	err   error
}

// Transport is an http.RoundTripper that attaches the session's access
// token to outgoing requests and renews it when it is expired or inside the
// skew window.
//
// Renewal is single-flight: the refreshing flag, guarded by mu, admits one
// renewal at a time. Requests arriving while a renewal is in flight append a
// waiter channel to the queue and suspend; when the renewal settles the
// queue is drained in enqueue order, every waiter receiving the same
// outcome. A failed renewal is terminal: the session is cleared and every
// waiter is rejected, since a rejected refresh token fails identically on
// retry.
type Transport struct {
	base    http.RoundTripper
	session *Session
	backend *backend
	logger  zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

func newTransport(base http.RoundTripper, session *Session, backend *backend, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		session: session,
		backend: backend,
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.session.AccessToken()
	if token == "" {
		// unauthenticated; proceed without a header
		return t.base.RoundTrip(req)
	}

	if !IsExpired(token) {
		return t.base.RoundTrip(withBearer(req, token))
	}

	token, err := t.renew(req.Context())
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(withBearer(req, token))
}

// renew obtains a fresh access token, either by performing the renewal call
// or by queueing behind the one already in flight.
func (t *Transport) renew(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.refreshing {
		waiter := make(chan refreshResult, 1)
		t.waiters = append(t.waiters, waiter)
		t.mu.Unlock()

		select {
		case res := <-waiter:
			return res.token, res.err
		case <-ctx.Done():
			// the caller abandoned this request; the renewal itself keeps
			// running for the remaining waiters
			return "", ctx.Err()
		}
	}
	t.refreshing = true
	t.mu.Unlock()

	// a renewal may have settled between the caller's expiry check and the
	// flag acquisition; reuse its token instead of renewing again
	if current := t.session.AccessToken(); current != "" && !IsExpired(current) {
		return t.settle(current, nil)
	}

	return t.settle(t.doRenewal())
}

// doRenewal performs the renewal call. It runs on a background context:
// once started, a renewal must run to completion because every queued
// waiter depends on its single outcome.
func (t *Transport) doRenewal() (string, error) {
	refresh := t.session.RefreshToken()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	pair, err := t.backend.refreshToken(context.Background(), refresh)
	if err != nil {
		return "", err
	}

	t.session.Login(pair.Access, pair.Refresh)
	return pair.Access, nil
}

// settle drains the waiter queue in enqueue order with the renewal's
// outcome and lowers the refreshing flag. On failure the session is cleared
// first, then every waiter and the originating request are rejected with
// the same error, then the navigator is sent to the login entry point.
func (t *Transport) settle(token string, err error) (string, error) {
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = nil
	t.refreshing = false
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn().Err(err).Int("waiters", len(waiters)).Msg("token renewal failed, session is terminal")
		err = fmt.Errorf("%w: %v", ErrSessionExpired, err)
		t.session.clearLocalState()
	}

	for _, waiter := range waiters {
		waiter <- refreshResult{token: token, err: err}
	}

	if err != nil {
		t.session.navigateToLogin()
	}
	return token, err
}

func withBearer(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone
}
