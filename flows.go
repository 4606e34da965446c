package clubauth

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// FlowPhase is where a credential acquisition flow currently is. A flow
// enters FlowVerifying once, then moves to exactly one of FlowSucceeded or
// FlowFailed. FlowFailed is terminal: the user gets a manual way back to
// the login entry point, never an automatic retry.
type FlowPhase int

const (
	FlowVerifying FlowPhase = iota
	FlowSucceeded
	FlowFailed
)

func (p FlowPhase) String() string {
	switch p {
	case FlowVerifying:
		return "verifying"
	case FlowSucceeded:
		return "succeeded"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MagicLinkResult is the outcome of a completed magic-link verification.
// RedirectTo is where the application should navigate next: the setup path
// when the profile is incomplete, otherwise the stored post-login target or
// the application root.
type MagicLinkResult struct {
	AccessToken     string
	RefreshToken    string
	ProfileComplete bool
	RedirectTo      string
}

// magicLinkOutcome caches the settled result of one single-use token so a
// duplicate invocation cannot re-issue the verification call.
type magicLinkOutcome struct {
	done   chan struct{}
	result MagicLinkResult
	err    error
}

type magicLinkFlow struct {
	mu       sync.Mutex
	outcomes map[string]*magicLinkOutcome
}

// MagicLinkStatus reports where the verification of one token currently
// is. The second return is false when no verification was started for the
// token.
func (c *Client) MagicLinkStatus(token string) (FlowPhase, bool) {
	c.magic.mu.Lock()
	outcome, ok := c.magic.outcomes[token]
	c.magic.mu.Unlock()
	if !ok {
		return FlowVerifying, false
	}

	select {
	case <-outcome.done:
		if outcome.err != nil {
			return FlowFailed, true
		}
		return FlowSucceeded, true
	default:
		return FlowVerifying, true
	}
}

// RequestMagicLink asks the backend to email a one-time login link.
func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	return c.backend.requestMagicLink(ctx, email)
}

// VerifyMagicLink redeems a one-time emailed login token and logs the
// session in. Exactly one verification call is made per token: repeated
// invocations, such as a duplicate mount, return the first call's cached
// outcome. A failed verification is terminal and is never retried.
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (MagicLinkResult, error) {
	c.magic.mu.Lock()
	if c.magic.outcomes == nil {
		c.magic.outcomes = make(map[string]*magicLinkOutcome)
	}
	if outcome, ok := c.magic.outcomes[token]; ok {
		c.magic.mu.Unlock()
		select {
		case <-outcome.done:
			return outcome.result, outcome.err
		case <-ctx.Done():
			return MagicLinkResult{}, ctx.Err()
		}
	}
	outcome := &magicLinkOutcome{done: make(chan struct{})}
	c.magic.outcomes[token] = outcome
	c.magic.mu.Unlock()

	outcome.result, outcome.err = c.verifyMagicLink(ctx, token)
	close(outcome.done)
	return outcome.result, outcome.err
}

func (c *Client) verifyMagicLink(ctx context.Context, token string) (MagicLinkResult, error) {
	resp, err := c.backend.verifyMagicLink(ctx, token)
	if err != nil {
		return MagicLinkResult{}, err
	}

	c.session.Login(resp.Access, resp.Refresh)

	// the stored target is consumed on every completed login, so it cannot
	// replay on a later one; setup still wins over it
	redirect := c.consumePostLoginRedirect()
	if !resp.ProfileComplete {
		redirect = c.cfg.SetupPath
	}

	return MagicLinkResult{
		AccessToken:     resp.Access,
		RefreshToken:    resp.Refresh,
		ProfileComplete: resp.ProfileComplete,
		RedirectTo:      redirect,
	}, nil
}

// ProviderLoginStart begins the delegated identity-provider flow. It
// generates a PKCE verifier, asks the backend for the provider's
// authorization URL, stores the verifier and the post-login redirect target
// for the round-trip, and returns the URL the browsing context should
// navigate to.
//
// When the force-fresh-login flag is set from an earlier provider logout,
// the backend is told to force the provider's login prompt and the flag is
// consumed.
func (c *Client) ProviderLoginStart(ctx context.Context, redirectTarget string) (string, error) {
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	forceLogin := c.store.Get(KeyForceFreshLogin) == "true"

	resp, err := c.backend.providerLoginStart(ctx, challenge, forceLogin)
	if err != nil {
		return "", err
	}

	if forceLogin {
		if err := c.store.Remove(KeyForceFreshLogin); err != nil {
			c.logger.Warn().Err(err).Msg("failed to consume force-fresh-login flag")
		}
	}

	// a backend-issued verifier takes precedence over the local one
	if resp.CodeVerifier != "" {
		verifier = resp.CodeVerifier
	}
	if err := c.store.Set(KeyPKCEVerifier, verifier); err != nil {
		return "", err
	}
	if redirectTarget != "" {
		if err := c.store.Set(KeyPostLoginRedirect, redirectTarget); err != nil {
			c.logger.Warn().Err(err).Msg("failed to store post-login redirect")
		}
	}

	return resp.AuthURL, nil
}

// ProviderCallback finishes the delegated flow: it exchanges the provider's
// authorization response through the backend using the stored verifier,
// logs the session in, clears the verifier, and returns the restored
// post-login redirect target, falling back to the application root.
func (c *Client) ProviderCallback(ctx context.Context, code, state string) (string, error) {
	verifier := c.store.Get(KeyPKCEVerifier)

	resp, err := c.backend.providerExchange(ctx, code, state, verifier)
	if err != nil {
		return "", err
	}

	if err := c.store.Remove(KeyPKCEVerifier); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear PKCE verifier")
	}
	if resp.IDToken != "" {
		if err := c.store.Set(KeyProviderIDToken, resp.IDToken); err != nil {
			c.logger.Warn().Err(err).Msg("failed to store provider ID token")
		}
	}

	c.session.Login(resp.Access, resp.Refresh)

	return c.consumePostLoginRedirect(), nil
}

// consumePostLoginRedirect pops the stored post-login redirect target,
// falling back to the application root. The target is removed so a later
// login cannot replay a stale redirect.
func (c *Client) consumePostLoginRedirect() string {
	redirect := c.store.Get(KeyPostLoginRedirect)
	if err := c.store.Remove(KeyPostLoginRedirect); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear post-login redirect")
	}
	if redirect == "" {
		return c.cfg.RootPath
	}
	return redirect
}
