package clubauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// backend performs the raw HTTP calls against the auth endpoints. Auth
// endpoints go through the bare client, never the refresh-aware one, to
// avoid a renewal loop.
type backend struct {
	host   string
	bare   *http.Client
	authed *http.Client
}

type verifyMagicLinkResponse struct {
	TokenPair
	ProfileComplete bool `json:"profileComplete"`
}

type providerLoginResponse struct {
	AuthURL      string `json:"authURL"`
	CodeVerifier string `json:"codeVerifier"`
}

type providerExchangeResponse struct {
	TokenPair
	IDToken string `json:"idToken"`
}

type providerLogoutRequest struct {
	PostLogoutRedirectURI string `json:"post_logout_redirect_uri"`
	IDToken               string `json:"id_token"`
}

type providerLogoutResponse struct {
	LogoutURL string `json:"logoutURL"`
}

// Profile is the authenticated user's profile as reported by the backend.
// SetupCompleted drives the route guard's setup redirect.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	SetupCompleted bool   `json:"setupCompleted"`
}

// refreshToken exchanges the refresh token for a new credential pair. Any
// non-2xx response is a hard failure.
func (b *backend) refreshToken(ctx context.Context, refresh string) (TokenPair, error) {
	var pair TokenPair
	err := b.call(ctx, http.MethodPost, "/auth/refreshToken", refresh, nil, &pair)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token renewal failed: %w", err)
	}
	return pair, nil
}

// verifyMagicLink redeems a one-time emailed login token.
func (b *backend) verifyMagicLink(ctx context.Context, token string) (verifyMagicLinkResponse, error) {
	var out verifyMagicLinkResponse
	path := "/auth/verifyMagicLink?token=" + url.QueryEscape(token)
	if err := b.call(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return verifyMagicLinkResponse{}, fmt.Errorf("magic link verification failed: %w", err)
	}
	return out, nil
}

// requestMagicLink asks the backend to email a one-time login link.
func (b *backend) requestMagicLink(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if err := b.call(ctx, http.MethodPost, "/auth/requestMagicLink", "", body, nil); err != nil {
		return fmt.Errorf("magic link request failed: %w", err)
	}
	return nil
}

// providerLoginStart asks the backend for the identity provider's
// authorization URL. codeChallenge is the S256 challenge for the locally
// generated PKCE verifier; forceLogin makes the provider show its login
// prompt even when a provider session exists.
func (b *backend) providerLoginStart(ctx context.Context, codeChallenge string, forceLogin bool) (providerLoginResponse, error) {
	q := url.Values{}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
	}
	if forceLogin {
		q.Set("forceLogin", "true")
	}
	path := "/auth/provider/login"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out providerLoginResponse
	if err := b.call(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return providerLoginResponse{}, fmt.Errorf("provider login start failed: %w", err)
	}
	return out, nil
}

// providerExchange redeems the provider's authorization response for a
// credential pair, using the verifier stored when the flow started.
func (b *backend) providerExchange(ctx context.Context, code, state, verifier string) (providerExchangeResponse, error) {
	body := map[string]string{
		"code":         code,
		"state":        state,
		"codeVerifier": verifier,
	}
	var out providerExchangeResponse
	if err := b.call(ctx, http.MethodPost, "/auth/provider/callback", "", body, &out); err != nil {
		return providerExchangeResponse{}, fmt.Errorf("provider exchange failed: %w", err)
	}
	return out, nil
}

// logout terminates the server-side session identified by the refresh token.
func (b *backend) logout(ctx context.Context, refresh string) error {
	return b.call(ctx, http.MethodPost, "/auth/logout", refresh, nil, nil)
}

// providerLogout asks the backend for the provider's logout URL.
func (b *backend) providerLogout(ctx context.Context, refresh, idToken, postLogoutRedirect string) (string, error) {
	body := providerLogoutRequest{
		PostLogoutRedirectURI: postLogoutRedirect,
		IDToken:               idToken,
	}
	var out providerLogoutResponse
	if err := b.call(ctx, http.MethodPost, "/auth/provider/logout", refresh, body, &out); err != nil {
		return "", err
	}
	return out.LogoutURL, nil
}

// fetchProfile loads the authenticated user's profile. It goes through the
// refresh-aware client so an expired access token is renewed first.
func (b *backend) fetchProfile(ctx context.Context) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.host+"/api/v1/profile", nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.authed.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid profile response: %w", err)
	}
	return &p, nil
}

// call performs one request against an auth endpoint. authToken, when set,
// is sent as the bearer value; body, when set, is sent as JSON; out, when
// set, receives the decoded 2xx response body.
func (b *backend) call(ctx context.Context, method, path, authToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.host+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := b.bare.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("invalid response from backend: %w", err)
		}
	}
	return nil
}

// checkStatus converts a non-2xx response into an APIError carrying the
// body as plaintext detail.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Detail:     strings.TrimSpace(string(detail)),
	}
}
