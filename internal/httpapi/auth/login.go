package auth

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"golang.org/x/text/language"

	"github.com/galette-community/plugin-oauth2/internal/audit"
	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/flow"
	"github.com/galette-community/plugin-oauth2/internal/i18n"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

//go:embed templates/login.html
var templateFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFS, "templates/login.html"))

type loginPage struct {
	Lang          string
	Heading       string
	Error         string
	Action        string
	Login         string
	LoginLabel    string
	PasswordLabel string
	Submit        string
}

var errNoSession = errors.New("auth: no session in request context")

// LoginForm captures the pending authorize request and renders the form.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.serverError(w, errNoSession)
		return
	}
	h.runtime.Flow.Begin(sess, r.URL.Query().Get("redirect_url"))
	if err := h.runtime.Sessions.Save(r.Context(), sess); err != nil {
		h.serverError(w, err)
		return
	}
	h.renderLogin(w, r, sess, http.StatusOK, "", "")
}

// Login runs the login flow for the submitted credentials.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := session.FromContext(ctx)
	if !ok {
		h.serverError(w, errNoSession)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "malformed form"})
		return
	}
	login := r.PostForm.Get("login")

	res, err := h.runtime.Flow.Submit(ctx, sess, login, r.PostForm.Get("password"), audit.MetaFromRequest(r))
	if saveErr := h.runtime.Sessions.Save(ctx, sess); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	tag := h.catalog.Match(r.Header.Get("Accept-Language"))
	switch res.Failure {
	case flow.FailureNone, flow.FailureMissingRequestParameter:
		http.Redirect(w, r, res.Redirect, http.StatusFound)
	case flow.FailureInvalidCredentials:
		h.renderLogin(w, r, sess, http.StatusUnauthorized, h.catalog.Text(tag, i18n.LoginInvalidCredentials), login)
	case flow.FailureAdminAccount:
		h.renderLogin(w, r, sess, http.StatusUnauthorized, h.catalog.Text(tag, i18n.LoginSuperadmin), login)
	case flow.FailureLocked:
		h.renderLogin(w, r, sess, http.StatusUnauthorized, h.catalog.Text(tag, i18n.LoginLocked), login)
	case flow.FailureInvalidRequest:
		h.renderLogin(w, r, sess, http.StatusBadRequest, h.catalog.Text(tag, i18n.LoginMissingRequest), login)
	case flow.FailureAuthorizationDenied:
		h.renderLogin(w, r, sess, http.StatusForbidden, authz.Message(res.Reason, tag), "")
	default:
		h.renderLogin(w, r, sess, http.StatusUnauthorized, h.catalog.Text(tag, i18n.AuthzDenied), login)
	}
}

// Logout ends the member session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := session.FromContext(ctx)
	if !ok {
		h.serverError(w, errNoSession)
		return
	}
	target := h.runtime.Flow.Logout(ctx, sess, audit.MetaFromRequest(r))
	if err := h.runtime.Sessions.Save(ctx, sess); err != nil {
		h.serverError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, message, login string) {
	tag := h.catalog.Match(r.Header.Get("Accept-Language"))
	title := h.runtime.Clients.Title(sess.RequestArgs().ClientID)

	page := loginPage{
		Lang:          languageCode(tag),
		Heading:       h.catalog.Text(tag, i18n.LoginTitle, title),
		Error:         message,
		Action:        h.loginPath,
		Login:         login,
		LoginLabel:    h.catalog.Text(tag, i18n.LoginFieldLogin),
		PasswordLabel: h.catalog.Text(tag, i18n.LoginFieldPassword),
		Submit:        h.catalog.Text(tag, i18n.LoginSubmit),
	}

	var buf bytes.Buffer
	if err := loginTemplate.Execute(&buf, page); err != nil {
		h.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Language", page.Lang)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func languageCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
