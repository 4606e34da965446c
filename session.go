package clubauth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SessionState is a snapshot of the shared authentication state.
type SessionState struct {
	Authenticated bool
	AccessToken   string
	RefreshToken  string
}

// Navigator moves the surrounding application somewhere else: to the login
// entry point after a failed renewal, or to the provider's logout URL. A
// browser shell would change location; a CLI might open a browser or just
// print the URL.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// Session holds the authentication state shared by every call-site for the
// process lifetime. It is created from the credential store at construction
// and mutated only through Login, Logout and the renewal transport.
//
// Construction checks token presence, not validity: a stored but expired
// access token still reports an authenticated session until the first
// request forces a renewal. Expiry handling belongs to the Transport.
type Session struct {
	cfg       Config
	store     CredentialStore
	backend   *backend
	navigator Navigator
	logger    zerolog.Logger

	mu            sync.Mutex
	authenticated bool
	accessToken   string
	refreshToken  string
	observers     []func(SessionState)

	// settled profile outcome, valid for the access token it was fetched
	// under; a failed fetch settles too, so the guard does not refetch on
	// every evaluation
	profile      *Profile
	profileErr   error
	profileToken string
	profileDone  bool
	fetch        *profileFetch
}

func newSession(cfg Config, store CredentialStore, backend *backend, navigator Navigator, logger zerolog.Logger) *Session {
	s := &Session{
		cfg:       cfg,
		store:     store,
		backend:   backend,
		navigator: navigator,
		logger:    logger,
	}
	s.accessToken = store.Get(KeyAccessToken)
	s.refreshToken = store.Get(KeyRefreshToken)
	s.authenticated = s.accessToken != ""
	return s
}

// State returns a snapshot of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		Authenticated: s.authenticated,
		AccessToken:   s.accessToken,
		RefreshToken:  s.refreshToken,
	}
}

// Authenticated reports whether an access token is held.
func (s *Session) Authenticated() bool { return s.State().Authenticated }

// AccessToken returns the current access token, or "" when logged out.
func (s *Session) AccessToken() string { return s.State().AccessToken }

// RefreshToken returns the current refresh token, or "" when logged out.
func (s *Session) RefreshToken() string { return s.State().RefreshToken }

// Subscribe registers fn to be called with a state snapshot after every
// session change. Observers re-evaluate whatever they derive from the
// session: the route guard, profile-dependent views.
func (s *Session) Subscribe(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Login installs a credential pair, marks the session authenticated and
// persists both tokens. It performs no network call.
func (s *Session) Login(access, refresh string) {
	s.mu.Lock()
	s.authenticated = true
	s.accessToken = access
	s.refreshToken = refresh
	if s.profileToken != access {
		// credentials changed identity; the cached outcome is stale
		s.resetProfileLocked()
	}
	s.mu.Unlock()

	s.persist(access, refresh)
	s.notify()
}

// Rehydrate re-reads the credential store and adopts any tokens that
// appeared after construction. Deployments where tokens arrive
// asynchronously after the first paint call this instead of treating the
// constructed state as final.
func (s *Session) Rehydrate() {
	access := s.store.Get(KeyAccessToken)
	refresh := s.store.Get(KeyRefreshToken)

	s.mu.Lock()
	changed := access != s.accessToken || refresh != s.refreshToken
	if changed {
		s.accessToken = access
		s.refreshToken = refresh
		s.authenticated = access != ""
		s.resetProfileLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Logout terminates the session. It never returns an error: server-side
// termination is best-effort and local state is cleared unconditionally.
//
// With revokeAtProvider true and a refresh token present, the backend is
// asked for a provider logout URL; on success local state is cleared first,
// the force-fresh-login flag is set, and the navigator is sent to the
// returned URL, so a slow or failed navigation cannot leave stale
// credentials behind. In every other branch a plain server-side termination
// call is attempted and local state is cleared identically.
func (s *Session) Logout(ctx context.Context, revokeAtProvider bool) {
	refresh := s.RefreshToken()

	if revokeAtProvider && refresh != "" {
		idToken := s.store.Get(KeyProviderIDToken)
		logoutURL, err := s.backend.providerLogout(ctx, refresh, idToken, s.cfg.PostLogoutRedirect)
		if err == nil && logoutURL != "" {
			s.clearLocalState()
			if err := s.store.Set(KeyForceFreshLogin, "true"); err != nil {
				s.logger.Warn().Err(err).Msg("failed to persist force-fresh-login flag")
			}
			s.navigator.Navigate(logoutURL)
			return
		}
		s.logger.Warn().Err(err).Msg("provider logout failed, falling back to plain termination")
	}

	if refresh != "" {
		if err := s.backend.logout(ctx, refresh); err != nil {
			s.logger.Warn().Err(err).Msg("server-side session termination failed")
		}
	}
	s.clearLocalState()
}

// navigateToLogin sends the navigator to the login entry point. Used on
// renewal failure; no server call is made, the refresh token was already
// rejected.
func (s *Session) navigateToLogin() {
	s.navigator.Navigate(s.cfg.LoginPath)
}

// clearLocalState drops both tokens and all provider auxiliary state from
// the session and the store, exactly once per call, and notifies observers.
func (s *Session) clearLocalState() {
	s.mu.Lock()
	s.authenticated = false
	s.accessToken = ""
	s.refreshToken = ""
	s.resetProfileLocked()
	s.mu.Unlock()

	for _, key := range []string{
		KeyAccessToken,
		KeyRefreshToken,
		KeyProviderIDToken,
		KeyPKCEVerifier,
		KeyPostLoginRedirect,
	} {
		if err := s.store.Remove(key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to clear stored value")
		}
	}

	s.notify()
}

func (s *Session) persist(access, refresh string) {
	if err := s.store.Set(KeyAccessToken, access); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist access token")
	}
	if err := s.store.Set(KeyRefreshToken, refresh); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist refresh token")
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	observers := make([]func(SessionState), len(s.observers))
	copy(observers, s.observers)
	state := SessionState{
		Authenticated: s.authenticated,
		AccessToken:   s.accessToken,
		RefreshToken:  s.refreshToken,
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

// profileFetch tracks one in-flight profile request so that concurrent
// callers share its outcome.
type profileFetch struct {
	done    chan struct{}
	profile *Profile
	err     error
}

func (s *Session) startProfileFetch() *profileFetch {
	s.mu.Lock()
	token := s.accessToken
	if s.profileDone && s.profileToken == token {
		cached := &profileFetch{done: closedDone, profile: s.profile, err: s.profileErr}
		s.mu.Unlock()
		return cached
	}
	if s.fetch != nil {
		fetch := s.fetch
		s.mu.Unlock()
		return fetch
	}

	fetch := &profileFetch{done: make(chan struct{})}
	s.fetch = fetch
	s.mu.Unlock()

	go func() {
		p, err := s.backend.fetchProfile(context.Background())

		s.mu.Lock()
		if s.accessToken == token {
			// cache the settled outcome, failure included, for this
			// credential identity
			s.profile = p
			s.profileErr = err
			s.profileToken = token
			s.profileDone = true
		}
		s.fetch = nil
		s.mu.Unlock()

		fetch.profile, fetch.err = p, err
		close(fetch.done)
	}()
	return fetch
}

// resetProfileLocked drops the cached profile outcome. Caller must hold
// s.mu.
func (s *Session) resetProfileLocked() {
	s.profile = nil
	s.profileErr = nil
	s.profileToken = ""
	s.profileDone = false
}

// Profile returns the authenticated user's profile, fetching it on first
// use and caching it until the credentials change identity.
func (s *Session) Profile(ctx context.Context) (*Profile, error) {
	fetch := s.startProfileFetch()
	select {
	case <-fetch.done:
		return fetch.profile, fetch.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProfileSnapshot returns the cached profile without blocking, starting a
// background fetch when none is cached. loading is true while a fetch is in
// flight.
func (s *Session) ProfileSnapshot() (profile *Profile, loading bool) {
	fetch := s.startProfileFetch()
	select {
	case <-fetch.done:
		return fetch.profile, false
	default:
		return nil, true
	}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
