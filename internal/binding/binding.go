// Package binding remembers the redirect URI a client used on its first
// authorize request, for clients that declare none in the registry.
//
// Purpose:
//
//	The authorize request passes through the login page before the code is
//	issued, and the client's redirect URI must be known when the code is
//	exchanged on a request that carries no browser session. Bind records the
//	URI in the session and in a durable side store keyed by client id;
//	Resolve reads the session first and falls back to the durable entry.
//
// Limitations:
//   - Bindings are unauthenticated and last-writer-wins: two concurrent
//     first-use requests for the same client may overwrite each other. A
//     stale binding surfaces as a redirect_uri mismatch from the
//     authorization server, never as a crash.
//   - A URI bound in a session is not replaced by a later request in the
//     same session.
package binding

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/session"
)

// ErrInvalidClientID is returned for client ids that cannot key a binding.
var ErrInvalidClientID = errors.New("binding: invalid client id")

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Durable is the side store that survives the session.
type Durable interface {
	// Put stores uri for clientID. It returns once the write is durable.
	Put(ctx context.Context, clientID, uri string) error
	// Get returns the bound uri, "" when nothing is bound.
	Get(ctx context.Context, clientID string) (string, error)
}

// Registry exposes the redirect URIs declared in the client registry.
type Registry interface {
	RedirectURI(clientID string) string
}

// Source tells where a resolved URI came from.
type Source string

// Sources.
const (
	SourceNone    Source = "none"
	SourceSession Source = "session"
	SourceDurable Source = "durable"
)

// Cache binds redirect URIs to clients.
type Cache struct {
	registry Registry
	durable  Durable
	logger   zerolog.Logger
}

// New creates a cache.
func New(registry Registry, durable Durable, logger zerolog.Logger) *Cache {
	return &Cache{registry: registry, durable: durable, logger: logger}
}

// Bind records redirectURI for clientID unless the registry declares a URI
// for the client or the session already holds a binding. It reports whether
// a new binding was written.
func (c *Cache) Bind(ctx context.Context, sess *session.Session, clientID, redirectURI string) (bool, error) {
	if clientID == "" || redirectURI == "" {
		return false, nil
	}
	if !clientIDPattern.MatchString(clientID) {
		return false, fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	if c.registry.RedirectURI(clientID) != "" {
		return false, nil
	}
	if sess != nil && sess.RedirectBinding(clientID) != "" {
		return false, nil
	}

	if err := c.durable.Put(ctx, clientID, redirectURI); err != nil {
		return false, fmt.Errorf("binding: put %s: %w", clientID, err)
	}
	if sess != nil {
		sess.SetRedirectBinding(clientID, redirectURI)
	}

	c.logger.Info().
		Str("client_id", clientID).
		Str("redirect_uri", redirectURI).
		Msg("bound redirect uri on first use")
	return true, nil
}

// Resolve returns the URI bound to clientID: from the session when present,
// else from the durable store, else "".
func (c *Cache) Resolve(ctx context.Context, sess *session.Session, clientID string) (string, Source, error) {
	if sess != nil {
		if uri := sess.RedirectBinding(clientID); uri != "" {
			return uri, SourceSession, nil
		}
	}
	if !clientIDPattern.MatchString(clientID) {
		return "", SourceNone, nil
	}
	uri, err := c.durable.Get(ctx, clientID)
	if err != nil {
		return "", SourceNone, fmt.Errorf("binding: get %s: %w", clientID, err)
	}
	if uri == "" {
		return "", SourceNone, nil
	}
	return uri, SourceDurable, nil
}
