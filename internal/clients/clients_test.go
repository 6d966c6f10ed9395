package clients

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registry = `
global:
  password: s3cret
galette_nextcloud:
  title: Nextcloud
  redirect_uri: https://cloud.example.org/callback
  redirect_logout: https://cloud.example.org/
  options: teamonly;uptodate
galette_wiki:
  options:
    - uptodate
    - openid
galette_bare: {}
`

func TestParse(t *testing.T) {
	store, err := Parse([]byte(registry))
	require.NoError(t, err)

	assert.Equal(t, []string{"galette_bare", "galette_nextcloud", "galette_wiki"}, store.IDs())

	reg, ok := store.Get("galette_nextcloud")
	require.True(t, ok)
	assert.Equal(t, Registration{
		ID:          "galette_nextcloud",
		Options:     "teamonly;uptodate",
		RedirectURI: "https://cloud.example.org/callback",
		Title:       "Nextcloud",
		LogoutURI:   "https://cloud.example.org/",
	}, reg)

	assert.Equal(t, "uptodate;openid", store.Options("galette_wiki"))
	assert.Equal(t, Secret{Plain: "s3cret"}, store.Secret())

	_, ok = store.Get(globalKey)
	assert.False(t, ok)
}

func TestDefaults(t *testing.T) {
	store, err := Parse([]byte(registry))
	require.NoError(t, err)

	assert.Equal(t, "Nextcloud", store.Title("galette_nextcloud"))
	assert.Equal(t, DefaultTitle, store.Title("galette_bare"))
	assert.Equal(t, DefaultTitle, store.Title("galette_unknown"))

	assert.Equal(t, "https://cloud.example.org/", store.LogoutURI("galette_nextcloud"))
	assert.Equal(t, DefaultLogoutURI, store.LogoutURI("galette_wiki"))

	assert.Empty(t, store.Options("galette_unknown"))
	assert.Empty(t, store.RedirectURI("galette_bare"))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("galette_a:\n  title: A\n"))
	require.ErrorIs(t, err, ErrNoSecret)

	_, err = Parse([]byte("global: [unclosed"))
	require.Error(t, err)

	_, err = Parse([]byte("global:\n  password: x\nc:\n  options: {a: b}\n"))
	require.Error(t, err)
}

func TestParseHashedSecret(t *testing.T) {
	store, err := Parse([]byte("global:\n  password_hash: $2a$10$abcdefghijklmnopqrstuv\n"))
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuv", store.Secret().Hash)
	assert.False(t, store.Secret().Empty())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(registry), 0o600))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, store.IDs(), 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
