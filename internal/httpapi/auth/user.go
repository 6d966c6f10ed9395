package auth

import (
	"errors"
	"net/http"

	"github.com/ory/fosite"

	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/httpapi/middleware"
	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/internal/metrics"
)

// User serves the claims of the member behind the bearer token. The
// authorization rules run again with the options granted to the token, so a
// member who lost a right since the code was issued gets access_denied.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requester := middleware.GetAccessRequest(ctx)
	sess := middleware.GetSession(ctx)
	if requester == nil || sess == nil {
		middleware.WriteOAuthError(w, fosite.ErrRequestUnauthorized)
		return
	}
	clientID := requester.GetClient().GetID()

	opts, err := authz.MergeOptions(h.runtime.Clients.Options(clientID), requester.GetGrantedScopes())
	if err != nil {
		middleware.WriteOAuthError(w, fosite.ErrInvalidScope.WithHint(err.Error()))
		return
	}

	rec, err := h.runtime.Loader.Load(ctx, sess.UserID)
	if errors.Is(err, members.ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	outcome := h.runtime.Authz.Decide(rec, opts)
	if !outcome.Allowed {
		metrics.RecordAuthorizationDenied(string(outcome.Reason))
		tag := h.catalog.Match(r.Header.Get("Accept-Language"))
		middleware.WriteOAuthError(w, fosite.ErrAccessDenied.WithHint(authz.Message(outcome.Reason, tag)))
		return
	}
	metrics.RecordAuthorizationAllowed()
	metrics.RecordClaimsServed(clientID)

	writeJSON(w, http.StatusOK, outcome.Claims)
}
