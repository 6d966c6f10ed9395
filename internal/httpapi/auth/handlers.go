// Package auth provides the HTTP handlers of the authorization bridge.
//
// Purpose:
//
//	This package serves the browser side of the authorization code flow
//	(login page, logout, gated authorize endpoint) and the relying party
//	side (token exchange, revocation, claims). fosite owns every protocol
//	decision; the handlers add the member login, the authorization rules
//	and the claims payload around it.
//
// Dependencies:
//   - github.com/go-chi/chi/v5: HTTP router for route registration
//   - github.com/ory/fosite: authorize, token and revocation flows
//   - internal/bootstrap: Runtime dependencies (provider, flow, sessions)
//   - internal/httpapi/middleware: session gate, redirect binding, bearer
//
// Key Responsibilities:
//   - Login: GET renders the form, POST runs the login flow
//   - Logout: clears the session and redirects to the client logout URI
//   - Authorize: re-checks the authorization rules and issues the code
//   - Token: authorization_code and refresh_token grants
//   - User: claims of the member behind a bearer token
//
// Debugging Notes:
//   - Every path is prefixed by PUBLIC_BASE_PATH
//   - Sessions are saved before the response is written
//   - Login failures re-render the form (401/403), never loop through redirects
//   - Passwords are never logged
//
// Thread Safety:
//   - Handler methods are safe for concurrent use
//
// Error Handling:
//   - OAuth errors are written with fosite's writers
//   - Infrastructure errors return 500 with a JSON body
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/bootstrap"
	"github.com/galette-community/plugin-oauth2/internal/httpapi/middleware"
	"github.com/galette-community/plugin-oauth2/internal/i18n"
	"github.com/galette-community/plugin-oauth2/internal/logging"
)

// Route paths relative to the public base path.
const (
	LoginPath     = "/login"
	LogoutPath    = "/logout"
	AuthorizePath = "/authorize"
	TokenPath     = "/access_token"
	RevokePath    = "/revoke"
	UserPath      = "/user"
)

// RegisterRoutes mounts the bridge routes beneath the configured base path.
// Routes are only registered if the runtime carries a provider and a flow.
func RegisterRoutes(router chi.Router, rt *bootstrap.Runtime) {
	if rt == nil || rt.Provider == nil || rt.Flow == nil || rt.Sessions == nil {
		return
	}
	handler := NewHandler(rt)
	logger := handler.logger

	mount := func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.Sessions.Middleware)
			r.Get(LoginPath, handler.LoginForm)
			r.Post(LoginPath, handler.Login)
			r.Get(LogoutPath, handler.Logout)
			r.Post(LogoutPath, handler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.BindRedirect(rt.Bindings, rt.Sessions, rt.Audit, logger))
				r.Use(middleware.AuthGate(handler.loginPath, logger))
				r.Get(AuthorizePath, handler.Authorize)
				r.Post(AuthorizePath, handler.Authorize)
			})
		})

		r.Post(TokenPath, handler.Token)
		r.Post(RevokePath, handler.Revoke)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireBearer(rt.Provider, logger))
			r.Get(UserPath, handler.User)
		})
	}

	if base := basePath(rt); base != "" {
		router.Route(base, mount)
		return
	}
	mount(router)
}

// Handler serves the bridge endpoints.
type Handler struct {
	runtime   *bootstrap.Runtime
	catalog   *i18n.Catalog
	logger    zerolog.Logger
	loginPath string
}

// NewHandler creates a Handler from the runtime.
func NewHandler(rt *bootstrap.Runtime) *Handler {
	return &Handler{
		runtime:   rt,
		catalog:   i18n.Default(),
		logger:    logging.Component(rt.Logger, "http"),
		loginPath: basePath(rt) + LoginPath,
	}
}

func basePath(rt *bootstrap.Runtime) string {
	if rt.Config == nil {
		return ""
	}
	return strings.TrimRight(rt.Config.BasePath, "/")
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "server_error", Message: err.Error()})
}
