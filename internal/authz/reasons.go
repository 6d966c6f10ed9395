package authz

import (
	"golang.org/x/text/language"

	"github.com/galette-community/plugin-oauth2/internal/i18n"
)

// Reason names why a member was denied. Values double as metric labels.
type Reason string

// Built-in reasons.
const (
	ReasonInactiveMember Reason = "inactive_member"
	ReasonNotTeamMember  Reason = "not_team_member"
	ReasonNotUpToDate    Reason = "not_up_to_date"
)

var reasonKeys = map[Reason]i18n.Key{
	ReasonInactiveMember: i18n.AuthzInactiveMember,
	ReasonNotTeamMember:  i18n.AuthzNotTeamMember,
	ReasonNotUpToDate:    i18n.AuthzNotUpToDate,
}

// Message renders the user-facing text for reason. Custom reasons get the
// generic denial text.
func Message(reason Reason, tag language.Tag) string {
	key, ok := reasonKeys[reason]
	if !ok {
		key = i18n.AuthzDenied
	}
	return i18n.Default().Text(tag, key)
}
