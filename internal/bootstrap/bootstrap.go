// Package bootstrap provides centralized initialization and lifecycle management for
// the bridge dependencies (member store, Redis, sessions, bindings, OAuth provider).
//
// Purpose:
//
//	This package wires together the runtime dependencies required by the
//	bridge binary. It ensures consistent initialization order, handles
//	connection failures, and provides a unified shutdown and health check
//	interface.
//
// Dependencies:
//   - github.com/redis/go-redis/v9: sessions, bindings and lockout counters
//   - internal/storage/postgres: Galette member tables
//   - internal/oauth: fosite provider composition
//   - internal/flow: login state machine
//
// Key Responsibilities:
//   - Initialize connects to Postgres and optional Redis, loads the client
//     registry, composes the provider and the login flow
//   - Runtime bundles all initialized dependencies for use by handlers
//   - ReadinessProbe checks health of Postgres and Redis connections
//   - Close releases all resources in reverse initialization order
//
// Debugging Notes:
//   - Redis connection failures fail fast during initialization (2s timeout)
//   - Without DATABASE_URL an empty in-memory member store is used and
//     nobody can log in; a warning is logged
//   - Without Redis, login lockout is disabled
//   - OAuth provider composition requires a valid HMAC secret (minimum 32 bytes)
//
// Thread Safety:
//   - Runtime struct is safe for concurrent read access after initialization
//   - Close should be called once during shutdown
//
// Error Handling:
//   - Initialization errors are wrapped with context (e.g., "bootstrap postgres: ...")
//   - ReadinessProbe returns errors that include dependency names
//   - Close collects errors but returns the first one encountered
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/audit"
	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/binding"
	"github.com/galette-community/plugin-oauth2/internal/clients"
	"github.com/galette-community/plugin-oauth2/internal/config"
	"github.com/galette-community/plugin-oauth2/internal/flow"
	"github.com/galette-community/plugin-oauth2/internal/logging"
	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/internal/oauth"
	"github.com/galette-community/plugin-oauth2/internal/security"
	"github.com/galette-community/plugin-oauth2/internal/session"
	"github.com/galette-community/plugin-oauth2/internal/storage/postgres"
)

// keyPrefix namespaces the Redis keys of sessions and bindings.
const keyPrefix = "oauth2"

// MemberStore is what the bridge reads from the Galette member tables.
type MemberStore interface {
	members.Loader
	members.CredentialSource
}

// Runtime bundles initialized runtime dependencies for use by the bridge binary.
// All fields are populated during Initialize and remain valid until Close is called.
type Runtime struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Postgres *postgres.Store // nil when members come from an injected store
	Redis    *redis.Client   // nil if not configured

	Verifier members.CredentialVerifier
	Loader   members.Loader

	Clients  *clients.ConfigStore
	Sessions *session.Manager
	Bindings *binding.Cache
	Provider *oauth.Provider
	Authz    *authz.Engine
	Flow     *flow.Service
	Audit    audit.Emitter

	LockoutTracker *security.LockoutTracker // nil if Redis is not configured
}

// Option customizes Initialize.
type Option func(*initOptions)

type initOptions struct {
	logger    *zerolog.Logger
	members   MemberStore
	registry  *clients.ConfigStore
	emitter   audit.Emitter
	authzHook func(*authz.Engine) error
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *initOptions) { o.logger = &logger }
}

// WithMemberStore uses store instead of connecting to DATABASE_URL.
func WithMemberStore(store MemberStore) Option {
	return func(o *initOptions) { o.members = store }
}

// WithClientRegistry uses registry instead of reading CLIENTS_FILE.
func WithClientRegistry(registry *clients.ConfigStore) Option {
	return func(o *initOptions) { o.registry = registry }
}

// WithAuditEmitter replaces the Kafka or logger emitter.
func WithAuditEmitter(emitter audit.Emitter) Option {
	return func(o *initOptions) { o.emitter = emitter }
}

// WithAuthorizationRules registers custom option rules on the engine.
func WithAuthorizationRules(register func(*authz.Engine) error) Option {
	return func(o *initOptions) { o.authzHook = register }
}

// Initialize wires core dependencies based on the provided configuration.
// Initialization order: logger → member store → Redis → registry → sessions →
// bindings → provider → audit → lockout → authorization engine → login flow.
// The returned Runtime must be closed via Close() during shutdown.
func Initialize(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	if o.logger != nil {
		logger = *o.logger
	}
	runtime := &Runtime{Config: cfg, Logger: logger}

	store, err := runtime.memberStore(ctx, o.members)
	if err != nil {
		return nil, err
	}
	runtime.Loader = store
	runtime.Verifier = members.NewAuthenticator(store, cfg.AdminLogin, cfg.AdminPasswordHash)

	if cfg.RedisAddr != "" {
		runtime.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		// Best-effort ping with timeout to fail fast if Redis is unavailable.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := runtime.Redis.Ping(pingCtx).Err(); err != nil {
			_ = runtime.Close(ctx)
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
	}

	runtime.Clients = o.registry
	if runtime.Clients == nil {
		if runtime.Clients, err = clients.Load(cfg.ClientsFile); err != nil {
			_ = runtime.Close(ctx)
			return nil, fmt.Errorf("bootstrap clients: %w", err)
		}
	}
	logger.Info().Int("clients", len(runtime.Clients.IDs())).Msg("client registry loaded")

	runtime.Sessions = session.NewManager(runtime.sessionStore(), []byte(cfg.SessionHashKey), []byte(cfg.SessionBlockKey), session.Options{
		CookieName: cfg.SessionCookieName,
		Path:       cookiePath(cfg.BasePath),
		Secure:     cfg.SessionCookieSecure,
		TTL:        cfg.SessionTTL,
	}, logging.Component(logger, "session"))

	durable, err := runtime.bindingStore()
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}
	runtime.Bindings = binding.New(runtime.Clients, durable, logging.Component(logger, "binding"))

	provider, err := oauth.NewProvider(oauth.ProviderDependencies{
		Registry:       runtime.Clients,
		Bindings:       runtime.Bindings,
		HMACSecret:     []byte(cfg.OAuthHMACSecret),
		ClientIDPrefix: cfg.ClientIDPrefix,
		EnforcePKCE:    cfg.OAuthEnforcePKCE,
		HashCost:       cfg.OAuthHashCost,
		Logger:         logging.Component(logger, "oauth"),
	})
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("bootstrap provider: %w", err)
	}
	runtime.Provider = provider
	if runtime.Clients.Secret().Plain != "" {
		logger.Warn().Msg("global client secret is configured in clear text, prefer password_hash")
	}

	runtime.Audit = o.emitter
	if runtime.Audit == nil {
		runtime.Audit = runtime.auditEmitter()
	}

	var limiter flow.LoginLimiter
	if runtime.Redis != nil {
		runtime.LockoutTracker = security.NewLockoutTracker(runtime.Redis, security.LockoutConfig{
			MaxAttempts:     cfg.LockoutMaxAttempts,
			LockoutDuration: cfg.LockoutDuration(),
			WindowDuration:  cfg.LockoutWindow(),
		})
		limiter = runtime.LockoutTracker
	}

	runtime.Authz = authz.NewEngine()
	if o.authzHook != nil {
		if err := o.authzHook(runtime.Authz); err != nil {
			_ = runtime.Close(ctx)
			return nil, fmt.Errorf("bootstrap authorization rules: %w", err)
		}
	}

	base := strings.TrimRight(cfg.BasePath, "/")
	runtime.Flow = flow.NewService(flow.Dependencies{
		Verifier:      runtime.Verifier,
		Loader:        runtime.Loader,
		Registry:      runtime.Clients,
		Decider:       runtime.Authz,
		Limiter:       limiter,
		Emitter:       runtime.Audit,
		Logger:        logger,
		AuthorizePath: base + "/authorize",
		LoginPath:     base + "/login",
	})

	return runtime, nil
}

func (rt *Runtime) memberStore(ctx context.Context, injected MemberStore) (MemberStore, error) {
	if injected != nil {
		return injected, nil
	}
	if rt.Config.DatabaseURL == "" {
		rt.Logger.Warn().Msg("DATABASE_URL is empty, using an empty in-memory member store")
		return members.NewMemoryStore(), nil
	}
	pgStore, err := postgres.NewStore(ctx, rt.Config.DatabaseURL, rt.Config.TablePrefix)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}
	rt.Postgres = pgStore
	return pgStore, nil
}

func (rt *Runtime) sessionStore() session.Store {
	if rt.Config.SessionBackend == config.BackendRedis && rt.Redis != nil {
		return session.NewRedisStore(rt.Redis, keyPrefix)
	}
	return session.NewMemoryStore()
}

func (rt *Runtime) bindingStore() (binding.Durable, error) {
	if rt.Config.BindingBackend == config.BackendRedis && rt.Redis != nil {
		return binding.NewRedisStore(rt.Redis, keyPrefix, rt.Config.BindingTTL), nil
	}
	store, err := binding.NewFileStore(rt.Config.BindingDir, rt.Config.BindingTTL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap bindings: %w", err)
	}
	return store, nil
}

func (rt *Runtime) auditEmitter() audit.Emitter {
	logger := rt.Logger
	if rt.Config.KafkaBrokers == "" {
		logger.Info().Msg("Kafka not configured, using logger emitter for audit events")
		return audit.NewLoggerEmitter(logger)
	}
	emitter, err := audit.NewKafkaEmitter(audit.KafkaConfig{
		Brokers:  strings.Split(rt.Config.KafkaBrokers, ","),
		Topic:    rt.Config.KafkaTopic,
		ClientID: rt.Config.KafkaClientID,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize Kafka emitter, falling back to logger")
		return audit.NewLoggerEmitter(logger)
	}
	logger.Info().Str("topic", rt.Config.KafkaTopic).Msg("using Kafka emitter for audit events")
	return emitter
}

func cookiePath(basePath string) string {
	if p := strings.TrimRight(basePath, "/"); p != "" {
		return p
	}
	return "/"
}

// Close releases runtime resources in reverse initialization order.
// Returns the first error encountered, but continues closing other resources.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if kafkaEmitter, ok := rt.Audit.(*audit.KafkaEmitter); ok {
		if err := kafkaEmitter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Postgres != nil {
		rt.Postgres.Close()
	}
	return firstErr
}

// ReadinessProbe checks the health of critical runtime dependencies.
// Returns an error if Postgres or Redis (if configured) are unreachable.
// Context timeout should be set by the caller.
func (rt *Runtime) ReadinessProbe(ctx context.Context) error {
	if rt.Postgres != nil {
		if err := rt.Postgres.Pool().Ping(ctx); err != nil {
			return fmt.Errorf("postgres not ready: %w", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}
