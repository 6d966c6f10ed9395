package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ory/fosite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galette-community/plugin-oauth2/internal/oauth"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

func withSession(r *http.Request, sess *session.Session) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), sess))
}

func TestAuthGate_RedirectsUnlessLoggedIn(t *testing.T) {
	tests := []struct {
		name  string
		state session.LoginState
		noSes bool
	}{
		{name: "no session", noSes: true},
		{name: "logged out", state: session.LoggedOut},
		{name: "pending", state: session.Pending},
	}

	const target = "/authorize?response_type=code&client_id=galette_app&state=abcdefgh"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
			h := AuthGate("/login", zerolog.Nop())(next)

			req := httptest.NewRequest(http.MethodGet, target, nil)
			if !tt.noSes {
				sess := session.New("s1")
				sess.SetLoginState(tt.state)
				req = withSession(req, sess)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, called)
			require.Equal(t, http.StatusFound, rec.Code)
			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, target, loc.Query().Get("redirect_url"))
		})
	}
}

func TestAuthGate_PassesLoggedIn(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	sess := session.New("s1")
	sess.SetLoginState(session.LoggedIn)

	rec := httptest.NewRecorder()
	AuthGate("/login", zerolog.Nop())(next).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/authorize", nil), sess))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

type fakeBinder struct {
	bound bool
	err   error
	calls []string
}

func (f *fakeBinder) Bind(_ context.Context, sess *session.Session, clientID, uri string) (bool, error) {
	f.calls = append(f.calls, clientID+" "+uri)
	if f.bound && sess != nil {
		sess.SetRedirectBinding(clientID, uri)
	}
	return f.bound, f.err
}

type fakeSaver struct{ saved int }

func (f *fakeSaver) Save(context.Context, *session.Session) error {
	f.saved++
	return nil
}

func TestBindRedirect(t *testing.T) {
	tests := []struct {
		name      string
		binder    *fakeBinder
		wantSaved int
	}{
		{name: "new binding saves session", binder: &fakeBinder{bound: true}, wantSaved: 1},
		{name: "existing binding", binder: &fakeBinder{}, wantSaved: 0},
		{name: "binding error continues", binder: &fakeBinder{err: errors.New("disk full")}, wantSaved: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
			h := BindRedirect(tt.binder, saver, nil, zerolog.Nop())(next)

			q := url.Values{"client_id": {"galette_app"}, "redirect_uri": {"https://app.example/cb"}}
			req := withSession(httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil), session.New("s1"))
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, called)
			assert.Equal(t, []string{"galette_app https://app.example/cb"}, tt.binder.calls)
			assert.Equal(t, tt.wantSaved, saver.saved)
		})
	}
}

type fakeIntrospector struct {
	requester fosite.AccessRequester
	err       error
	token     string
}

func (f *fakeIntrospector) IntrospectToken(_ context.Context, token string, _ fosite.TokenUse, _ fosite.Session, _ ...string) (fosite.TokenUse, fosite.AccessRequester, error) {
	f.token = token
	return fosite.AccessToken, f.requester, f.err
}

func TestRequireBearer(t *testing.T) {
	valid := fosite.NewAccessRequest(oauth.NewSession(42, "galette_app"))
	anonymous := fosite.NewAccessRequest(&oauth.Session{})

	tests := []struct {
		name       string
		header     string
		intro      *fakeIntrospector
		wantStatus int
	}{
		{name: "missing token", intro: &fakeIntrospector{}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", intro: &fakeIntrospector{err: fosite.ErrTokenExpired}, wantStatus: http.StatusUnauthorized},
		{name: "token without member", header: "Bearer tok", intro: &fakeIntrospector{requester: anonymous}, wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer tok", intro: &fakeIntrospector{requester: valid}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSession *oauth.Session
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSession = GetSession(r.Context())
				assert.NotNil(t, GetAccessRequest(r.Context()))
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireBearer(tt.intro, zerolog.Nop())(next).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, gotSession)
				assert.Equal(t, int64(42), gotSession.UserID)
				assert.Equal(t, "tok", tt.intro.token)
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.False(t, strings.Contains(rec.Body.String(), "tok\""))
		})
	}
}

func TestRequireBearer_NoProvider(t *testing.T) {
	rec := httptest.NewRecorder()
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("next called") })
	RequireBearer(nil, zerolog.Nop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
