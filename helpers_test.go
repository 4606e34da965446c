package clubauth

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testConfig(host string) Config {
	return Config{
		Host:               host,
		LoginPath:          "/login",
		SetupPath:          "/signup",
		RootPath:           "/",
		PostLogoutRedirect: "/login",
	}
}

// mintToken signs a minimal access token expiring at the given instant. The
// client never verifies signatures, so any key works.
func mintToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// navRecorder records every navigation target, optionally running a check
// at navigation time.
type navRecorder struct {
	mu      sync.Mutex
	targets []string
	onNav   func(url string)
}

func (n *navRecorder) Navigate(url string) {
	n.mu.Lock()
	n.targets = append(n.targets, url)
	onNav := n.onNav
	n.mu.Unlock()
	if onNav != nil {
		onNav(url)
	}
}

func (n *navRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.targets))
	copy(out, n.targets)
	return out
}
