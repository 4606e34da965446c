// Package clubauth manages the authentication session for clients of the
// clubs backend: acquiring a credential pair, persisting it, renewing the
// access token before it expires, and revoking it on logout.
//
// # Architecture
//
// Session: the shared authentication state. It holds the access and refresh
// tokens, persists them through a CredentialStore, and exposes Login and
// Logout. Observers subscribe to be re-evaluated whenever the state changes.
//
// Transport: an http.RoundTripper that attaches the session's access token to
// every outgoing request and renews it through the backend when it is expired
// or about to expire. Renewal is single-flight: concurrent requests queue
// behind the one in-flight renewal and are resumed in order once it settles.
//
// Flows: three independent producers of a credential pair, all converging on
// Session.Login: hydration from the store at construction, one-time
// magic-link verification, and the delegated identity-provider exchange.
//
// Guard: a state machine gating protected views on authentication and
// profile-completion state.
//
// # Basic Usage
//
// Load configuration, open a credential store and build a client:
//
//	import (
//	    "github.com/NLstn/clubauth"
//	    fsstore "github.com/NLstn/clubauth/stores/fs"
//	)
//
//	cfg, err := clubauth.LoadConfig()
//	store, err := fsstore.New("", "clubs")
//	client := clubauth.New(cfg, store)
//
// Any request made through client.HTTPClient() carries a fresh access token:
//
//	resp, err := client.HTTPClient().Get(cfg.Host + "/api/v1/clubs")
//
// Log in through one of the acquisition flows:
//
//	result, err := client.VerifyMagicLink(ctx, tokenFromLink)
//
// and gate protected views:
//
//	decision := client.Guard().Evaluate("/clubs/5")
package clubauth
