package clubauth

import "sync"

// Keys under which the session persists client-side state. Each key is
// independently readable and removable; an absent key reads as the empty
// string, never as an error.
const (
	// KeyAccessToken and KeyRefreshToken hold the credential pair. They are
	// written and cleared together: no partial pair survives a restart.
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"

	// KeyProviderIDToken holds the identity provider's ID token, needed to
	// build the provider's logout URL.
	KeyProviderIDToken = "provider_id_token"

	// KeyForceFreshLogin is set on provider logout so that the next login
	// cannot silently reuse an existing provider session.
	KeyForceFreshLogin = "force_fresh_login"

	// KeyPostLoginRedirect is the path to restore after a completed login.
	KeyPostLoginRedirect = "post_login_redirect"

	// KeyPKCEVerifier holds the PKCE code verifier for the duration of one
	// provider login round-trip.
	KeyPKCEVerifier = "pkce_verifier"
)

// CredentialStore persists session state between restarts. Implementations
// must treat absent keys as empty values: a missing token means "not
// authenticated", a missing flag means "no override".
type CredentialStore interface {
	// Get returns the value stored under key, or "" if none is stored.
	Get(key string) string

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes the value stored under key. Removing an absent key is
	// not an error.
	Remove(key string) error
}

// MemoryStore is an in-memory CredentialStore. State lives for the process
// lifetime only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// NoopStore is a CredentialStore for environments without persistent
// storage. Writes are accepted and discarded; reads always miss.
type NoopStore struct{}

func (NoopStore) Get(string) string        { return "" }
func (NoopStore) Set(string, string) error { return nil }
func (NoopStore) Remove(string) error      { return nil }
