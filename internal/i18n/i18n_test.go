package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDefaultCatalogMatch(t *testing.T) {
	c := Default()

	tests := []struct {
		header string
		want   language.Tag
	}{
		{header: "fr-FR,fr;q=0.9,en;q=0.8", want: language.French},
		{header: "en-GB", want: language.English},
		{header: "de-DE", want: language.English},
		{header: "", want: language.English},
		{header: "!!garbage", want: language.English},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.header))
		})
	}
}

func TestDefaultCatalogText(t *testing.T) {
	c := Default()

	assert.Equal(t, "You are not an active member.", c.Text(language.English, AuthzInactiveMember))
	assert.Equal(t, "Vous n'êtes pas un membre actif.", c.Text(language.French, AuthzInactiveMember))
	assert.Equal(t, "Sign in to Nextcloud", c.Text(language.English, LoginTitle, "Nextcloud"))
	assert.Equal(t, "Check your login / email or password.", c.Text(language.German, LoginInvalidCredentials))
}

func TestEveryKeyTranslated(t *testing.T) {
	c := Default()
	keys := []Key{
		LoginTitle, LoginInvalidCredentials, LoginSuperadmin, LoginLocked, LoginMissingRequest,
		LoginFieldLogin, LoginFieldPassword, LoginSubmit,
		AuthzInactiveMember, AuthzNotTeamMember, AuthzNotUpToDate, AuthzDenied,
	}
	for _, tag := range c.Languages() {
		for _, key := range keys {
			assert.NotEqual(t, string(key), c.Text(tag, key, "x"), "%s missing in %s", key, tag)
		}
	}
}

func TestLoadRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/fr.yaml": {Data: []byte("locale: fr\nmessages:\n  a: b\n")},
	}
	_, err := Load(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base locale")
}

func TestLoadRejectsBadLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("locale: en\nmessages:\n  a: b\n")},
		"locales/xx.yaml": {Data: []byte("locale: \"not a tag!\"\nmessages:\n  a: b\n")},
	}
	_, err := Load(fsys)
	require.Error(t, err)
}
