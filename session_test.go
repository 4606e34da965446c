package clubauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ConstructionUsesPresenceNotValidity(t *testing.T) {
	// an expired but present token still reports an authenticated session;
	// expiry is handled lazily by the transport on first use
	store := NewMemoryStore()
	store.Set(KeyAccessToken, mintToken(t, time.Now().Add(-time.Hour)))
	store.Set(KeyRefreshToken, "refresh-1")

	client := New(testConfig("http://backend"), store)
	assert.True(t, client.IsLoggedIn())
}

func TestSession_ConstructionWithEmptyStore(t *testing.T) {
	client := New(testConfig("http://backend"), NewMemoryStore())
	assert.False(t, client.IsLoggedIn())
}

func TestSession_LoginPersistsAndNotifies(t *testing.T) {
	store := NewMemoryStore()
	client := New(testConfig("http://backend"), store)

	var notified atomic.Int32
	client.Session().Subscribe(func(state SessionState) {
		if state.Authenticated {
			notified.Add(1)
		}
	})

	client.Session().Login("access-1", "refresh-1")

	assert.True(t, client.IsLoggedIn())
	assert.Equal(t, "access-1", store.Get(KeyAccessToken))
	assert.Equal(t, "refresh-1", store.Get(KeyRefreshToken))
	assert.Equal(t, int32(1), notified.Load())
}

func TestSession_RehydrateAdoptsLateTokens(t *testing.T) {
	store := NewMemoryStore()
	client := New(testConfig("http://backend"), store)
	require.False(t, client.IsLoggedIn())

	// tokens appear after construction, e.g. browser cookie timing
	store.Set(KeyAccessToken, "access-1")
	store.Set(KeyRefreshToken, "refresh-1")

	client.Session().Rehydrate()
	assert.True(t, client.IsLoggedIn())
	assert.Equal(t, "access-1", client.Session().AccessToken())
}

// Logout with a provider logout URL must clear local credentials before
// navigating, so a slow or failed navigation cannot leave stale state.
func TestSession_LogoutAtProvider_ClearsBeforeNavigating(t *testing.T) {
	var providerLogouts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/provider/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&providerLogouts, 1)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "id-token-1")
		assert.Contains(t, string(body), "post_logout_redirect_uri")
		io.WriteString(w, `{"logoutURL":"https://idp.example/logout"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := NewMemoryStore()
	store.Set(KeyAccessToken, "access-1")
	store.Set(KeyRefreshToken, "refresh-1")
	store.Set(KeyProviderIDToken, "id-token-1")

	var clearedAtNavigation bool
	nav := &navRecorder{}
	nav.onNav = func(string) {
		clearedAtNavigation = store.Get(KeyAccessToken) == "" && store.Get(KeyRefreshToken) == ""
	}

	client := New(testConfig(server.URL), store, WithNavigator(nav))
	client.Logout(context.Background(), true)

	assert.Equal(t, int32(1), atomic.LoadInt32(&providerLogouts))
	assert.Equal(t, []string{"https://idp.example/logout"}, nav.all())
	assert.True(t, clearedAtNavigation, "credentials must be empty before navigating")
	assert.Equal(t, "true", store.Get(KeyForceFreshLogin))
	assert.Empty(t, store.Get(KeyProviderIDToken))
	assert.False(t, client.IsLoggedIn())
}

func TestSession_LogoutPlain(t *testing.T) {
	var terminations int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&terminations, 1)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := NewMemoryStore()
	store.Set(KeyAccessToken, "access-1")
	store.Set(KeyRefreshToken, "refresh-1")

	nav := &navRecorder{}
	client := New(testConfig(server.URL), store, WithNavigator(nav))
	client.Logout(context.Background(), false)

	assert.Equal(t, int32(1), atomic.LoadInt32(&terminations))
	assert.Empty(t, nav.all(), "plain logout does not navigate")
	assert.False(t, client.IsLoggedIn())
	assert.Empty(t, store.Get(KeyAccessToken))
}

// Logout never throws: a failing server call still clears local state, and
// logging out with no refresh token at all is a no-op network-wise.
func TestSession_LogoutIsUnconditional(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		store := NewMemoryStore()
		store.Set(KeyAccessToken, "access-1")
		store.Set(KeyRefreshToken, "refresh-1")

		client := New(testConfig(server.URL), store)
		client.Logout(context.Background(), true)

		assert.False(t, client.IsLoggedIn())
		assert.Empty(t, store.Get(KeyAccessToken))
		assert.Empty(t, store.Get(KeyRefreshToken))
	})

	t.Run("no refresh token", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer server.Close()

		client := New(testConfig(server.URL), NewMemoryStore())
		client.Logout(context.Background(), true)
		client.Logout(context.Background(), true) // idempotent

		assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no server call without a refresh token")
		assert.False(t, client.IsLoggedIn())
	})
}

func TestSession_ProfileIsCachedPerCredentialIdentity(t *testing.T) {
	var fetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		io.WriteString(w, `{"id":"u1","name":"Ada","email":"ada@example.com","setupCompleted":true}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := NewMemoryStore()
	store.Set(KeyAccessToken, mintToken(t, time.Now().Add(time.Hour)))
	store.Set(KeyRefreshToken, "refresh-1")

	client := New(testConfig(server.URL), store)
	ctx := context.Background()

	profile, err := client.Session().Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)

	_, err = client.Session().Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "second read must hit the cache")

	// a new credential identity invalidates the cache
	client.Session().Login(mintToken(t, time.Now().Add(time.Hour)), "refresh-2")
	_, err = client.Session().Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}
