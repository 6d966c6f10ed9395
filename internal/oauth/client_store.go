package oauth

import (
	"context"
	"strings"

	"github.com/ory/fosite"
	"github.com/ory/fosite/storage"
	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/binding"
	"github.com/galette-community/plugin-oauth2/internal/clients"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

var (
	clientGrantTypes    = fosite.Arguments{"authorization_code", "refresh_token"}
	clientResponseTypes = fosite.Arguments{"code"}
)

// ClientStore serves clients from the registry on top of fosite's in-memory
// code and token storage.
type ClientStore struct {
	*storage.MemoryStore

	registry   *clients.ConfigStore
	bindings   *binding.Cache
	prefix     string
	secretHash []byte
	logger     zerolog.Logger
}

// NewClientStore creates the storage. secretHash is the bcrypt hash of the
// global client secret.
func NewClientStore(registry *clients.ConfigStore, bindings *binding.Cache, prefix string, secretHash []byte, logger zerolog.Logger) *ClientStore {
	return &ClientStore{
		MemoryStore: storage.NewMemoryStore(),
		registry:    registry,
		bindings:    bindings,
		prefix:      prefix,
		secretHash:  secretHash,
		logger:      logger,
	}
}

// GetClient resolves a client declared in the registry, or any id carrying
// the configured prefix. Redirect URIs are the registered one plus the URI
// bound on first use, resolved from the browser session in ctx when there is
// one.
func (c *ClientStore) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	reg, declared := c.registry.Get(id)
	if !declared && (c.prefix == "" || !strings.Contains(id, c.prefix)) {
		c.logger.Debug().Str("client_id", id).Msg("unknown client")
		return nil, fosite.ErrNotFound
	}

	var uris []string
	if reg.RedirectURI != "" {
		uris = append(uris, reg.RedirectURI)
	}
	if c.bindings != nil {
		sess, _ := session.FromContext(ctx)
		bound, _, err := c.bindings.Resolve(ctx, sess, id)
		if err != nil {
			return nil, fosite.ErrServerError.WithWrap(err).WithDebug(err.Error())
		}
		if bound != "" && bound != reg.RedirectURI {
			uris = append(uris, bound)
		}
	}

	return &fosite.DefaultClient{
		ID:            id,
		Secret:        c.secretHash,
		RedirectURIs:  uris,
		GrantTypes:    clientGrantTypes,
		ResponseTypes: clientResponseTypes,
	}, nil
}
