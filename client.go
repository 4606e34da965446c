package clubauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// Client ties the session, the credential store and the renewal transport
// together for one backend host.
type Client struct {
	cfg       Config
	store     CredentialStore
	logger    zerolog.Logger
	navigator Navigator

	backend   *backend
	session   *Session
	transport *Transport
	httpc     *http.Client
	magic     magicLinkFlow

	baseTransport http.RoundTripper
	baseClient    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithNavigator sets how the client moves the surrounding application to
// another location. The default logs the target and does nothing else.
func WithNavigator(nav Navigator) Option {
	return func(c *Client) { c.navigator = nav }
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config,
// cookie jars). Its transport is wrapped with renewal handling.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		c.baseClient = client
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
	}
}

// WithTransport sets a custom base transport (for connection pooling,
// proxies).
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) { c.baseTransport = transport }
}

// New creates a client for the backend named by cfg.Host, hydrating the
// session from the store. A nil store behaves like NoopStore.
func New(cfg Config, store CredentialStore, opts ...Option) *Client {
	if u, err := url.Parse(cfg.Host); err == nil && u.Scheme != "" && u.Host != "" {
		cfg.Host = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if store == nil {
		store = NoopStore{}
	}

	c := &Client{
		cfg:           cfg,
		store:         store,
		logger:        zerolog.Nop(),
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.navigator == nil {
		logger := c.logger
		c.navigator = NavigatorFunc(func(target string) {
			logger.Debug().Str("url", target).Msg("navigation requested")
		})
	}

	bare := &http.Client{Transport: c.baseTransport}
	if c.baseClient != nil {
		bare.Timeout = c.baseClient.Timeout
		bare.Jar = c.baseClient.Jar
	}

	c.backend = &backend{host: cfg.Host, bare: bare}
	c.session = newSession(cfg, store, c.backend, c.navigator, c.logger)
	c.transport = newTransport(c.baseTransport, c.session, c.backend, c.logger)

	c.httpc = &http.Client{Transport: c.transport}
	if c.baseClient != nil {
		c.httpc.Timeout = c.baseClient.Timeout
		c.httpc.CheckRedirect = c.baseClient.CheckRedirect
		c.httpc.Jar = c.baseClient.Jar
	}
	c.backend.authed = c.httpc

	return c
}

// HTTPClient returns the renewal-aware HTTP client. Every request made
// through it carries a fresh access token while the session lasts.
func (c *Client) HTTPClient() *http.Client { return c.httpc }

// Session returns the shared session state.
func (c *Client) Session() *Session { return c.session }

// Guard returns the route guard bound to this client's session and paths.
func (c *Client) Guard() *Guard {
	return &Guard{
		session:   c.session,
		loginPath: c.cfg.LoginPath,
		setupPath: c.cfg.SetupPath,
	}
}

// IsLoggedIn reports whether the session holds an access token. Presence
// only: an expired token still counts until the first request renews it.
func (c *Client) IsLoggedIn() bool { return c.session.Authenticated() }

// Logout terminates the session. See Session.Logout.
func (c *Client) Logout(ctx context.Context, revokeAtProvider bool) {
	c.session.Logout(ctx, revokeAtProvider)
}
