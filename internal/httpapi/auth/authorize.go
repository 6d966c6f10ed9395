package auth

import (
	"errors"
	"net/http"

	"github.com/ory/fosite"

	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/internal/metrics"
	"github.com/galette-community/plugin-oauth2/internal/oauth"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

// Authorize issues the authorization code for the logged in member. It only
// runs behind AuthGate, so the session always carries a member; the
// authorization rules are checked again against the client of this request.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.runtime.Provider

	ar, err := provider.NewAuthorizeRequest(ctx, r)
	if err != nil {
		h.logger.Debug().Err(err).Msg("rejected authorize request")
		provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}
	clientID := ar.GetClient().GetID()

	sess, ok := session.FromContext(ctx)
	if !ok {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrServerError.WithDebug(errNoSession.Error()))
		return
	}
	memberID, ok := sess.UserID()
	if !ok {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrAccessDenied.WithHint("No member is logged in."))
		return
	}

	opts, err := authz.MergeOptions(h.runtime.Clients.Options(clientID), ar.GetRequestedScopes())
	if err != nil {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrInvalidScope.WithHint(err.Error()))
		return
	}

	rec, err := h.runtime.Loader.Load(ctx, memberID)
	if errors.Is(err, members.ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrServerError.WithWrap(err).WithDebug(err.Error()))
		return
	}

	outcome := h.runtime.Authz.Decide(rec, opts)
	if !outcome.Allowed {
		metrics.RecordAuthorizationDenied(string(outcome.Reason))
		sess.ClearIdentity()
		if err := h.runtime.Sessions.Save(ctx, sess); err != nil {
			h.logger.Warn().Err(err).Msg("failed to save session after denial")
		}
		tag := h.catalog.Match(r.Header.Get("Accept-Language"))
		provider.WriteAuthorizeError(ctx, w, ar, fosite.ErrAccessDenied.WithHint(authz.Message(outcome.Reason, tag)))
		return
	}
	metrics.RecordAuthorizationAllowed()

	for _, scope := range ar.GetRequestedScopes() {
		ar.GrantScope(scope)
	}

	resp, err := provider.NewAuthorizeResponse(ctx, ar, oauth.NewSession(memberID, clientID))
	if err != nil {
		h.logger.Warn().Err(err).Str("client_id", clientID).Msg("failed to issue authorization code")
		provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	// Keep the request just served: logout and a repeated login follow it.
	sess.SetRequestArgs(session.RequestArgsFromQuery(ar.GetRequestForm()))
	if err := h.runtime.Sessions.Save(ctx, sess); err != nil {
		h.serverError(w, err)
		return
	}

	h.logger.Info().Str("client_id", clientID).Int64("member_id", memberID).Msg("authorization code issued")
	provider.WriteAuthorizeResponse(ctx, w, ar, resp)
}
