// Package session keeps per user-agent login state between the requests of
// an OAuth handshake.
//
// Purpose:
//
//	A browser goes through /authorize, /login and back to /authorize. The
//	session carries the login state, the member id and the captured
//	authorization request across those hops.
//
// Key schema (values are strings so a session maps onto a Redis hash):
//   - isLoggedIn: "no", "pending" or "yes"
//   - user_id: member id, decimal
//   - request_args: captured authorize parameters, URL-encoded
//   - logout_client_id: client whose logout URI a repeated logout returns to
//   - redirect_uri.{client_id}: redirect URI bound to a client
//
// Thread Safety:
//
//	A *Session is owned by the request that loaded it and must not be shared
//	across goroutines. Stores and the Manager are safe for concurrent use.
package session

import (
	"net/url"
	"strconv"
	"strings"
)

// Session keys.
const (
	KeyLoggedIn      = "isLoggedIn"
	KeyUserID        = "user_id"
	KeyRequestArgs   = "request_args"
	KeyLogoutClient  = "logout_client_id"
	keyBindingPrefix = "redirect_uri."
)

// LoginState is the tri-state login marker.
type LoginState string

// Login states.
const (
	LoggedOut LoginState = "no"
	Pending   LoginState = "pending"
	LoggedIn  LoginState = "yes"
)

// RequestArgs are the authorize parameters captured before the login page.
type RequestArgs struct {
	ResponseType string
	ClientID     string
	Scope        string
	State        string
	RedirectURI  string
}

// RequestArgsFromQuery picks the five authorize parameters out of q.
func RequestArgsFromQuery(q url.Values) RequestArgs {
	return RequestArgs{
		ResponseType: q.Get("response_type"),
		ClientID:     q.Get("client_id"),
		Scope:        q.Get("scope"),
		State:        q.Get("state"),
		RedirectURI:  q.Get("redirect_uri"),
	}
}

// Query encodes the arguments as authorize query parameters. All five keys
// are always present.
func (a RequestArgs) Query() url.Values {
	return url.Values{
		"response_type": {a.ResponseType},
		"client_id":     {a.ClientID},
		"scope":         {a.Scope},
		"state":         {a.State},
		"redirect_uri":  {a.RedirectURI},
	}
}

// Missing returns the names of the required parameters that are empty.
// Scope is optional.
func (a RequestArgs) Missing() []string {
	var missing []string
	for _, p := range []struct{ name, value string }{
		{"response_type", a.ResponseType},
		{"client_id", a.ClientID},
		{"state", a.State},
		{"redirect_uri", a.RedirectURI},
	} {
		if strings.TrimSpace(p.value) == "" {
			missing = append(missing, p.name)
		}
	}
	return missing
}

// Scopes splits Scope on spaces.
func (a RequestArgs) Scopes() []string {
	return strings.Fields(a.Scope)
}

// Session is the state of one user agent.
type Session struct {
	id     string
	values map[string]string
	isNew  bool
}

// New returns an empty, logged out session.
func New(id string) *Session {
	return &Session{id: id, values: map[string]string{KeyLoggedIn: string(LoggedOut)}, isNew: true}
}

// FromValues rebuilds a session read from a store.
func FromValues(id string, values map[string]string) *Session {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Session{id: id, values: cp}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// Values returns a copy of the raw key/value pairs.
func (s *Session) Values() map[string]string {
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// LoginState returns the login marker, LoggedOut when unset or unknown.
func (s *Session) LoginState() LoginState {
	switch st := LoginState(s.values[KeyLoggedIn]); st {
	case Pending, LoggedIn:
		return st
	default:
		return LoggedOut
	}
}

// SetLoginState updates the login marker.
func (s *Session) SetLoginState(st LoginState) {
	s.values[KeyLoggedIn] = string(st)
}

// UserID returns the authenticated member id.
func (s *Session) UserID() (int64, bool) {
	raw, ok := s.values[KeyUserID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetUserID records the authenticated member id.
func (s *Session) SetUserID(id int64) {
	s.values[KeyUserID] = strconv.FormatInt(id, 10)
}

// ClearIdentity forgets the member and marks the session logged out.
// Captured request arguments and redirect bindings are kept.
func (s *Session) ClearIdentity() {
	delete(s.values, KeyUserID)
	s.values[KeyLoggedIn] = string(LoggedOut)
}

// RequestArgs returns the captured authorize parameters.
func (s *Session) RequestArgs() RequestArgs {
	q, err := url.ParseQuery(s.values[KeyRequestArgs])
	if err != nil {
		return RequestArgs{}
	}
	return RequestArgsFromQuery(q)
}

// SetRequestArgs stores the captured authorize parameters.
func (s *Session) SetRequestArgs(a RequestArgs) {
	s.values[KeyRequestArgs] = a.Query().Encode()
}

// ClearRequestArgs drops the captured authorize parameters.
func (s *Session) ClearRequestArgs() {
	delete(s.values, KeyRequestArgs)
}

// LogoutClient returns the client recorded by the last logout.
func (s *Session) LogoutClient() string {
	return s.values[KeyLogoutClient]
}

// SetLogoutClient records the client a logout sent the browser to.
func (s *Session) SetLogoutClient(clientID string) {
	if clientID == "" {
		delete(s.values, KeyLogoutClient)
		return
	}
	s.values[KeyLogoutClient] = clientID
}

// RedirectBinding returns the redirect URI bound to clientID in this session.
func (s *Session) RedirectBinding(clientID string) string {
	return s.values[keyBindingPrefix+clientID]
}

// SetRedirectBinding binds uri to clientID in this session.
func (s *Session) SetRedirectBinding(clientID, uri string) {
	s.values[keyBindingPrefix+clientID] = uri
}
