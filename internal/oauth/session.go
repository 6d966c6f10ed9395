package oauth

import (
	"strconv"

	"github.com/ory/fosite"
)

// Session is the fosite session attached to codes and tokens. It records
// the member the code was issued for and the client that asked.
type Session struct {
	fosite.DefaultSession
	UserID   int64  `json:"user_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// NewSession builds the session handed to fosite when a code is issued.
func NewSession(userID int64, clientID string) *Session {
	return &Session{
		DefaultSession: fosite.DefaultSession{
			Subject:  strconv.FormatInt(userID, 10),
			Username: strconv.FormatInt(userID, 10),
		},
		UserID:   userID,
		ClientID: clientID,
	}
}

// Clone returns a deep copy. Required by fosite.Session.
func (s *Session) Clone() fosite.Session {
	if s == nil {
		return nil
	}

	clone := *s
	if ds, ok := s.DefaultSession.Clone().(*fosite.DefaultSession); ok && ds != nil {
		clone.DefaultSession = *ds
	}
	return &clone
}
