// Package middleware provides the HTTP middleware guarding the bridge
// endpoints.
//
// Purpose:
//
//	RequireBearer validates access tokens on the resource endpoint. AuthGate
//	keeps anonymous browsers away from /authorize and sends them to the
//	login page with the original request preserved. BindRedirect records
//	the redirect URI of clients that declare none.
//
// Dependencies:
//   - github.com/ory/fosite: token introspection and RFC 6749 errors
//   - internal/session: browser session injected by session.Manager
//   - internal/binding: first-use redirect URI bindings
//
// Debugging Notes:
//   - AuthGate and BindRedirect need session.Manager.Middleware upstream
//   - A missing session is treated as logged out
//   - RequireBearer accepts the token from the Authorization header or the
//     access_token form parameter
//
// Thread Safety:
//   - Middleware is stateless and safe for concurrent use
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ory/fosite"
	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/oauth"
)

// ContextKey is the type for context keys.
type ContextKey string

const (
	// AccessRequestKey is the context key for the introspected access request.
	AccessRequestKey ContextKey = "auth.access_request"
	// SessionKey is the context key for the OAuth session of the token.
	SessionKey ContextKey = "auth.session"
)

// TokenIntrospector is the part of fosite.OAuth2Provider RequireBearer needs.
type TokenIntrospector interface {
	IntrospectToken(ctx context.Context, token string, tokenUse fosite.TokenUse, session fosite.Session, scope ...string) (fosite.TokenUse, fosite.AccessRequester, error)
}

// RequireBearer creates middleware that validates access tokens. Failures are
// answered with a 401 RFC 6749 error body.
func RequireBearer(provider TokenIntrospector, logger zerolog.Logger) func(http.Handler) http.Handler {
	if provider == nil {
		logger.Warn().Msg("OAuth provider not available, bearer middleware will reject all requests")
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteOAuthError(w, fosite.ErrServerError.WithHint("authentication not configured"))
			})
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := fosite.AccessTokenFromRequest(r)
			if token == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("missing bearer token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="galette"`)
				WriteOAuthError(w, fosite.ErrRequestUnauthorized.WithHint("Missing bearer token."))
				return
			}

			_, requester, err := provider.IntrospectToken(ctx, token, fosite.AccessToken, &oauth.Session{})
			if err != nil || requester == nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				w.Header().Set("WWW-Authenticate", `Bearer realm="galette", error="invalid_token"`)
				WriteOAuthError(w, fosite.ErrRequestUnauthorized.WithHint("The access token is invalid or expired."))
				return
			}

			sess, ok := requester.GetSession().(*oauth.Session)
			if !ok || sess.UserID == 0 {
				logger.Warn().Str("path", r.URL.Path).Msg("token carries no member")
				WriteOAuthError(w, fosite.ErrRequestUnauthorized.WithHint("The access token is not bound to a member."))
				return
			}

			ctx = context.WithValue(ctx, AccessRequestKey, requester)
			ctx = context.WithValue(ctx, SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccessRequest returns the introspected access request, nil when the
// request did not pass RequireBearer.
func GetAccessRequest(ctx context.Context) fosite.AccessRequester {
	requester, ok := ctx.Value(AccessRequestKey).(fosite.AccessRequester)
	if !ok {
		return nil
	}
	return requester
}

// GetSession returns the OAuth session of the bearer token, nil when absent.
func GetSession(ctx context.Context) *oauth.Session {
	sess, ok := ctx.Value(SessionKey).(*oauth.Session)
	if !ok {
		return nil
	}
	return sess
}

type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteOAuthError writes err as an RFC 6749 JSON error.
func WriteOAuthError(w http.ResponseWriter, err error) {
	rfc := fosite.ErrorToRFC6749Error(err)
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(rfc.CodeField)
	_ = json.NewEncoder(w).Encode(oauthErrorBody{
		Error:            rfc.ErrorField,
		ErrorDescription: rfc.GetDescription(),
	})
}
