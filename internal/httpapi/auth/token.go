package auth

import (
	"net/http"

	"github.com/galette-community/plugin-oauth2/internal/oauth"
)

// Token exchanges an authorization code or a refresh token for tokens.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.runtime.Provider

	accessRequest, err := provider.NewAccessRequest(ctx, r, &oauth.Session{})
	if err != nil {
		h.logger.Debug().Err(err).Msg("rejected token request")
		provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	response, err := provider.NewAccessResponse(ctx, accessRequest)
	if err != nil {
		provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	provider.WriteAccessResponse(ctx, w, accessRequest, response)
}

// Revoke revokes an access or refresh token.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.runtime.Provider.NewRevocationRequest(ctx, r)
	if err != nil {
		h.logger.Debug().Err(err).Msg("revocation failed")
	}
	h.runtime.Provider.WriteRevocationResponse(ctx, w, err)
}
