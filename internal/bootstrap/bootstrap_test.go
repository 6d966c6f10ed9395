package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/binding"
	"github.com/galette-community/plugin-oauth2/internal/clients"
	"github.com/galette-community/plugin-oauth2/internal/config"
	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

const registryYAML = `
global:
  password: s3cret
galette_app:
  title: App
  options: teamonly
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServiceName:        "galette-oauth2-test",
		LogLevel:           "error",
		ClientIDPrefix:     "galette_",
		BindingBackend:     config.BackendFile,
		BindingDir:         t.TempDir(),
		SessionBackend:     config.BackendMemory,
		SessionHashKey:     strings.Repeat("h", 32),
		SessionTTL:         time.Hour,
		OAuthHMACSecret:    strings.Repeat("s", 32),
		OAuthHashCost:      4,
		AdminLogin:         "admin",
		LockoutMaxAttempts: 3,
	}
}

func testRegistry(t *testing.T) *clients.ConfigStore {
	t.Helper()
	reg, err := clients.Parse([]byte(registryYAML))
	require.NoError(t, err)
	return reg
}

func TestInitialize_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	rt, err := Initialize(ctx, testConfig(t),
		WithLogger(zerolog.Nop()),
		WithClientRegistry(testRegistry(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	assert.Nil(t, rt.Postgres)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.LockoutTracker)
	assert.NotNil(t, rt.Provider)
	assert.NotNil(t, rt.Flow)
	assert.NotNil(t, rt.Sessions)
	assert.NoError(t, rt.ReadinessProbe(ctx))

	// The empty member store refuses everybody.
	_, err = rt.Verifier.Verify(ctx, "jdoe", "pw")
	assert.ErrorIs(t, err, members.ErrInvalidCredentials)

	client, err := rt.Provider.Store.GetClient(ctx, "galette_app")
	require.NoError(t, err)
	assert.Equal(t, "galette_app", client.GetID())
}

func TestInitialize_RedisBackends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	cfg.SessionBackend = config.BackendRedis
	cfg.BindingBackend = config.BackendRedis

	rt, err := Initialize(ctx, cfg,
		WithLogger(zerolog.Nop()),
		WithClientRegistry(testRegistry(t)),
		WithMemberStore(members.NewMemoryStore()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	require.NotNil(t, rt.Redis)
	require.NotNil(t, rt.LockoutTracker)
	assert.NoError(t, rt.ReadinessProbe(ctx))

	sess := session.New("s1")
	bound, err := rt.Bindings.Bind(ctx, sess, "galette_new", "https://new.example/cb")
	require.NoError(t, err)
	assert.True(t, bound)

	uri, source, err := rt.Bindings.Resolve(ctx, nil, "galette_new")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/cb", uri)
	assert.Equal(t, binding.SourceDurable, source)
	assert.True(t, mr.Exists("oauth2:redirect_uri:galette_new"))

	mr.Close()
	assert.Error(t, rt.ReadinessProbe(ctx))
}

func TestInitialize_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RedisAddr = "127.0.0.1:1"
		_, err := Initialize(ctx, cfg, WithLogger(zerolog.Nop()), WithClientRegistry(testRegistry(t)))
		assert.ErrorContains(t, err, "bootstrap redis")
	})

	t.Run("missing clients file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ClientsFile = t.TempDir() + "/absent.yml"
		_, err := Initialize(ctx, cfg, WithLogger(zerolog.Nop()))
		assert.ErrorContains(t, err, "bootstrap clients")
	})

	t.Run("short hmac secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OAuthHMACSecret = "short"
		_, err := Initialize(ctx, cfg, WithLogger(zerolog.Nop()), WithClientRegistry(testRegistry(t)))
		assert.ErrorContains(t, err, "bootstrap provider")
	})

	t.Run("conflicting rule", func(t *testing.T) {
		_, err := Initialize(ctx, testConfig(t),
			WithLogger(zerolog.Nop()),
			WithClientRegistry(testRegistry(t)),
			WithAuthorizationRules(func(e *authz.Engine) error {
				return e.Register(authz.OptionTeamOnly, authz.Rule{Reason: "x", Allow: func(*members.Record) bool { return true }})
			}),
		)
		assert.ErrorContains(t, err, "bootstrap authorization rules")
	})
}
