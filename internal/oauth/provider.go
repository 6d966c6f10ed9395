// Package oauth composes the fosite authorization server used by the bridge.
//
// Purpose:
//
//	fosite owns the OAuth2 protocol: authorization codes, access and refresh
//	tokens, PKCE, introspection and revocation. This package supplies it with
//	clients from the registry, redirect URIs learned on first use, and a
//	session type carrying the member id.
//
// Dependencies:
//   - github.com/ory/fosite: OAuth2 framework, compose and in-memory storage
//   - internal/clients: client registry and global secret
//   - internal/binding: first-use redirect URI bindings
//
// Key Responsibilities:
//   - NewProvider composes a fosite.OAuth2Provider with HMAC tokens
//   - Hashes (or adopts the hash of) the global client secret
//   - Accepts any requested scope: scopes are authorization options here,
//     checked by package authz, not permissions
//
// Debugging Notes:
//   - HMAC secret must be at least 32 bytes
//   - Codes and tokens live in memory and do not survive a restart
//   - Refresh tokens are issued without requiring an "offline" scope
//   - PKCE is optional unless EnforcePKCE is set
//
// Thread Safety:
//   - Created provider is safe for concurrent use by HTTP handlers
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"
	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/binding"
	"github.com/galette-community/plugin-oauth2/internal/clients"
)

// ProviderDependencies encapsulates the inputs required to compose a fosite provider.
type ProviderDependencies struct {
	Registry *clients.ConfigStore
	Bindings *binding.Cache

	// HMACSecret seeds the HMAC token strategy (minimum 32 bytes).
	HMACSecret []byte

	// ClientIDPrefix admits undeclared clients whose id contains it.
	ClientIDPrefix string

	EnforcePKCE bool
	HashCost    int

	// Config allows overriding the default fosite configuration.
	Config *fosite.Config

	// Factories allows overriding the default handler factories.
	Factories []compose.Factory

	Logger zerolog.Logger
}

// Provider bundles the composed fosite provider with its storage.
type Provider struct {
	fosite.OAuth2Provider
	Store *ClientStore
}

// NewProvider composes the fosite provider.
func NewProvider(deps ProviderDependencies) (*Provider, error) {
	if len(deps.HMACSecret) < 32 {
		return nil, errors.New("oauth provider: HMAC secret must be at least 32 bytes")
	}
	if deps.Registry == nil {
		return nil, errors.New("oauth provider: client registry is required")
	}

	cfg := deps.Config
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.EnforcePKCE = cfg.EnforcePKCE || deps.EnforcePKCE
	if deps.HashCost > 0 {
		cfg.HashCost = deps.HashCost
	}
	if len(cfg.GlobalSecret) == 0 {
		cfg.GlobalSecret = deps.HMACSecret
	}
	if cfg.ClientSecretsHasher == nil {
		cfg.ClientSecretsHasher = &fosite.BCrypt{Config: cfg}
	}

	secretHash, err := clientSecretHash(cfg, deps.Registry.Secret())
	if err != nil {
		return nil, err
	}

	store := NewClientStore(deps.Registry, deps.Bindings, deps.ClientIDPrefix, secretHash, deps.Logger)

	factories := deps.Factories
	if len(factories) == 0 {
		factories = defaultFactories()
	}

	return &Provider{
		OAuth2Provider: compose.Compose(cfg, store, compose.NewOAuth2HMACStrategy(cfg), factories...),
		Store:          store,
	}, nil
}

// AcceptAnyScope is the scope strategy: every requested scope is grantable.
func AcceptAnyScope(_ []string, _ string) bool {
	return true
}

func defaultConfig() *fosite.Config {
	return &fosite.Config{
		AccessTokenLifespan:            time.Hour,
		RefreshTokenLifespan:           30 * 24 * time.Hour,
		AuthorizeCodeLifespan:          10 * time.Minute,
		ScopeStrategy:                  AcceptAnyScope,
		RefreshTokenScopes:             []string{},
		EnforcePKCE:                    false,
		EnablePKCEPlainChallengeMethod: false,
		SendDebugMessagesToClients:     false,
		TokenEntropy:                   32,
		MinParameterEntropy:            fosite.MinParameterEntropy,
	}
}

func defaultFactories() []compose.Factory {
	return []compose.Factory{
		compose.OAuth2AuthorizeExplicitFactory,
		compose.OAuth2RefreshTokenGrantFactory,
		compose.OAuth2TokenIntrospectionFactory,
		compose.OAuth2TokenRevocationFactory,
		compose.OAuth2PKCEFactory,
	}
}

// clientSecretHash adopts a configured bcrypt hash (PHP's $2y$ prefix is
// rewritten to $2a$) or hashes the clear secret.
func clientSecretHash(cfg *fosite.Config, secret clients.Secret) ([]byte, error) {
	if secret.Hash != "" {
		h := secret.Hash
		if strings.HasPrefix(h, "$2y$") {
			h = "$2a$" + strings.TrimPrefix(h, "$2y$")
		}
		return []byte(h), nil
	}
	if secret.Plain == "" {
		return nil, clients.ErrNoSecret
	}
	hash, err := cfg.ClientSecretsHasher.Hash(context.Background(), []byte(secret.Plain))
	if err != nil {
		return nil, fmt.Errorf("oauth provider: hash client secret: %w", err)
	}
	return hash, nil
}
