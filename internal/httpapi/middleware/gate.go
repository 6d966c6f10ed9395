package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/audit"
	"github.com/galette-community/plugin-oauth2/internal/metrics"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

// AuthGate sends every request whose session is not fully logged in to
// loginPath, carrying the original request URI in redirect_url. The wrapped
// handler is only reached by logged in sessions.
func AuthGate(loginPath string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if ok && sess.LoginState() == session.LoggedIn {
				next.ServeHTTP(w, r)
				return
			}
			logger.Debug().Str("path", r.URL.Path).Msg("not logged in, redirecting to login")
			http.Redirect(w, r, loginPath+"?redirect_url="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		})
	}
}

// Binder records redirect URIs on first use.
type Binder interface {
	Bind(ctx context.Context, sess *session.Session, clientID, redirectURI string) (bool, error)
}

// SessionSaver persists a session.
type SessionSaver interface {
	Save(ctx context.Context, sess *session.Session) error
}

// BindRedirect records the client_id/redirect_uri pair of an authorize
// request before anything else runs, so the URI is known when the browser
// comes back from the login page and when the code is exchanged. Binding
// failures are logged and do not stop the request: the authorization server
// reports the redirect URI mismatch.
func BindRedirect(binder Binder, sessions SessionSaver, emitter audit.Emitter, logger zerolog.Logger) func(http.Handler) http.Handler {
	if emitter == nil {
		emitter = audit.NewNoopEmitter()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientID := r.FormValue("client_id")
			redirectURI := r.FormValue("redirect_uri")
			sess, _ := session.FromContext(ctx)

			bound, err := binder.Bind(ctx, sess, clientID, redirectURI)
			switch {
			case err != nil:
				logger.Warn().Err(err).Str("client_id", clientID).Msg("failed to bind redirect uri")
			case bound:
				metrics.RecordBinding("bind", "request")
				if sess != nil {
					if err := sessions.Save(ctx, sess); err != nil {
						logger.Warn().Err(err).Msg("failed to save session after binding")
					}
				}
				event := audit.BuildEvent(audit.ActionRedirectBound, audit.OutcomeSuccess, audit.ActorTypeClient, clientID, audit.MetaFromRequest(r))
				event.ClientID = clientID
				event.Metadata = map[string]any{"redirect_uri": redirectURI}
				if err := emitter.Emit(ctx, event); err != nil {
					logger.Warn().Err(err).Msg("failed to emit audit event")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
