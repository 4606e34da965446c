package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := New(path, "")
	require.NoError(t, err)

	require.NoError(t, store.Set("access_token", "tok-1"))
	require.NoError(t, store.Set("refresh_token", "tok-2"))

	reopened, err := New(path, "")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", reopened.Get("access_token"))
	assert.Equal(t, "tok-2", reopened.Get("refresh_token"))
}

func TestStore_AbsentKeyReadsEmpty(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "session.json"), "")
	require.NoError(t, err)
	assert.Empty(t, store.Get("access_token"))
}

func TestStore_Remove(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "session.json"), "")
	require.NoError(t, err)

	require.NoError(t, store.Set("pkce_verifier", "v"))
	require.NoError(t, store.Remove("pkce_verifier"))
	assert.Empty(t, store.Get("pkce_verifier"))

	require.NoError(t, store.Remove("pkce_verifier"), "removing an absent key is not an error")
}

func TestStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "session.json")
	store, err := New(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Set("access_token", "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := New(path, "")
	assert.Error(t, err)
}
