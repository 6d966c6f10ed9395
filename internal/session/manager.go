package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
)

type contextKey struct{}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session injected by Manager.Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// Options tune the session cookie.
type Options struct {
	CookieName string
	Path       string
	Secure     bool
	TTL        time.Duration
}

// Manager issues signed session cookies and loads sessions from a Store.
type Manager struct {
	store  Store
	codec  *securecookie.SecureCookie
	opts   Options
	logger zerolog.Logger
}

// NewManager creates a manager. hashKey signs the cookie; a non-empty
// blockKey also encrypts it.
func NewManager(store Store, hashKey, blockKey []byte, opts Options, logger zerolog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "galette_oauth2"
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	codec := securecookie.New(hashKey, blockKey)
	if opts.TTL > 0 {
		codec.MaxAge(int(opts.TTL.Seconds()))
	}
	return &Manager{store: store, codec: codec, opts: opts, logger: logger}
}

// Load returns the session of the request, creating one (and its cookie)
// when the cookie is missing, tampered with or points to an expired session.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(m.opts.CookieName); err == nil {
		var id string
		if err := m.codec.Decode(m.opts.CookieName, cookie.Value, &id); err == nil {
			values, err := m.store.Load(r.Context(), id)
			switch {
			case err == nil:
				return FromValues(id, values), nil
			case !errors.Is(err, ErrNotFound):
				return nil, err
			}
		} else {
			m.logger.Debug().Err(err).Msg("discarding undecodable session cookie")
		}
	}

	sess := New(uuid.NewString())
	encoded, err := m.codec.Encode(m.opts.CookieName, sess.ID())
	if err != nil {
		return nil, err
	}
	cookie := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    encoded,
		Path:     m.opts.Path,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.opts.TTL > 0 {
		cookie.MaxAge = int(m.opts.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return sess, nil
}

// Save persists sess and resets its TTL.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	return m.store.Save(ctx, sess.ID(), sess.values, m.opts.TTL)
}

// Middleware loads the session and injects it into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(w, r)
		if err != nil {
			m.logger.Error().Err(err).Msg("failed to load session")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error","message":"session unavailable"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}
