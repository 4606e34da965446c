package clubauth

import (
	"net/http"
	"net/url"
	"strings"
)

// GuardState is one branch of the route-guard state machine.
type GuardState int

const (
	// GuardUnauthenticated: no session; redirect to the login entry point
	// with the current path as the redirect parameter.
	GuardUnauthenticated GuardState = iota

	// GuardProfileLoading: authenticated, profile fetch in flight; render a
	// neutral loading indicator and nothing else.
	GuardProfileLoading

	// GuardSetupIncomplete: authenticated but the profile is not set up;
	// redirect to the setup path.
	GuardSetupIncomplete

	// GuardReady: fully authenticated and set up; render the protected
	// children.
	GuardReady
)

func (s GuardState) String() string {
	switch s {
	case GuardUnauthenticated:
		return "unauthenticated"
	case GuardProfileLoading:
		return "profile-loading"
	case GuardSetupIncomplete:
		return "setup-incomplete"
	case GuardReady:
		return "ready"
	default:
		return "unknown"
	}
}

// GuardDecision is the guard's verdict for one evaluation. RedirectTo is
// set for the two redirecting states and empty otherwise.
type GuardDecision struct {
	State      GuardState
	RedirectTo string
}

// Guard gates protected views on session and profile-completion state. It
// holds no state of its own beyond what it reads from the session.
type Guard struct {
	session   *Session
	loginPath string
	setupPath string
}

// Evaluate runs the state machine for the given current path (path and
// query, as it would appear in the address bar).
func (g *Guard) Evaluate(currentPath string) GuardDecision {
	if !g.session.Authenticated() {
		return GuardDecision{
			State:      GuardUnauthenticated,
			RedirectTo: g.loginPath + "?redirect=" + url.QueryEscape(currentPath),
		}
	}

	profile, loading := g.session.ProfileSnapshot()
	if loading {
		return GuardDecision{State: GuardProfileLoading}
	}

	if profile != nil && !profile.SetupCompleted && pathOnly(currentPath) != g.setupPath {
		return GuardDecision{State: GuardSetupIncomplete, RedirectTo: g.setupPath}
	}

	// every other authenticated case renders the children; that includes a
	// settled fetch error, where failing closed would lock the user out
	return GuardDecision{State: GuardReady}
}

// pathOnly strips the query from a path+query string.
func pathOnly(currentPath string) string {
	if i := strings.Index(currentPath, "?"); i >= 0 {
		return currentPath[:i]
	}
	return currentPath
}

// Middleware is the guard as an http.Handler wrapper for server-rendered
// deployments. It blocks on the profile fetch instead of surfacing the
// loading state, redirects for the unauthenticated and setup-incomplete
// branches, and otherwise serves the protected handler.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		currentPath := r.URL.Path
		if r.URL.RawQuery != "" {
			currentPath += "?" + r.URL.RawQuery
		}

		if !g.session.Authenticated() {
			target := g.loginPath + "?redirect=" + url.QueryEscape(currentPath)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		profile, err := g.session.Profile(r.Context())
		if err == nil && profile != nil && !profile.SetupCompleted && r.URL.Path != g.setupPath {
			http.Redirect(w, r, g.setupPath, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}
