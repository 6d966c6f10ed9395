package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/galette-community/plugin-oauth2/internal/members"
)

func activeMember() *members.Record {
	return &members.Record{
		ID:        7,
		Surname:   "Durand",
		GivenName: "Rémi",
		Status:    "member",
		Active:    true,
		UpToDate:  true,
	}
}

func TestDecideAllowsActiveMemberWithoutOptions(t *testing.T) {
	out := NewEngine().Decide(activeMember(), nil)

	require.True(t, out.Allowed)
	require.NotNil(t, out.Claims)
	assert.Equal(t, "d.remi", out.Claims.Username)
	assert.NoError(t, out.Err())
}

func TestDecideInactiveMember(t *testing.T) {
	rec := activeMember()
	rec.Active = false

	out := NewEngine().Decide(rec, nil)

	assert.False(t, out.Allowed)
	assert.Nil(t, out.Claims)
	assert.Equal(t, ReasonInactiveMember, out.Reason)

	out = NewEngine().Decide(nil, Options{OptionTeamOnly})
	assert.Equal(t, ReasonInactiveMember, out.Reason)
}

func TestDecideTeamOnly(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		mutate  func(*members.Record)
		opts    Options
		allowed bool
	}{
		{name: "plain member refused", mutate: func(*members.Record) {}, opts: Options{OptionTeamOnly}},
		{name: "plain member refused with other options", mutate: func(*members.Record) {}, opts: Options{"openid", OptionTeamOnly, OptionUpToDate}},
		{name: "admin", mutate: func(r *members.Record) { r.Admin = true }, opts: Options{OptionTeamOnly}, allowed: true},
		{name: "staff", mutate: func(r *members.Record) { r.Staff = true }, opts: Options{OptionTeamOnly}, allowed: true},
		{name: "group manager", mutate: func(r *members.Record) { r.GroupManager = true }, opts: Options{OptionTeamOnly}, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := activeMember()
			tt.mutate(rec)
			out := engine.Decide(rec, tt.opts)
			assert.Equal(t, tt.allowed, out.Allowed)
			if !tt.allowed {
				assert.Equal(t, ReasonNotTeamMember, out.Reason)
			}
		})
	}
}

func TestDecideUpToDate(t *testing.T) {
	rec := activeMember()
	rec.UpToDate = false

	out := NewEngine().Decide(rec, Options{OptionUpToDate})
	assert.False(t, out.Allowed)
	assert.Equal(t, ReasonNotUpToDate, out.Reason)

	out = NewEngine().Decide(rec, nil)
	assert.True(t, out.Allowed)
	assert.Equal(t, "false", out.Claims.State)
}

func TestDecideReportsEveryViolation(t *testing.T) {
	rec := activeMember()
	rec.Active = false
	rec.UpToDate = false

	out := NewEngine().Decide(rec, Options{OptionUpToDate, OptionTeamOnly})

	assert.Equal(t, ReasonInactiveMember, out.Reason)
	assert.Equal(t, []Reason{ReasonInactiveMember, ReasonNotTeamMember, ReasonNotUpToDate}, out.Violations)

	var denied *DeniedError
	require.ErrorAs(t, out.Err(), &denied)
	assert.Equal(t, ReasonInactiveMember, denied.Reason)
	assert.True(t, errors.Is(out.Err(), ErrAuthorizationDenied))
}

func TestRegisterCustomRule(t *testing.T) {
	engine := NewEngine()
	const reasonNoEmail Reason = "no_email"

	require.NoError(t, engine.Register("mailonly", Rule{
		Reason: reasonNoEmail,
		Allow:  func(r *members.Record) bool { return r.Email != "" },
	}))

	rec := activeMember()
	out := engine.Decide(rec, Options{"mailonly"})
	assert.False(t, out.Allowed)
	assert.Equal(t, reasonNoEmail, out.Reason)

	rec.Email = "remi@example.org"
	assert.True(t, engine.Decide(rec, Options{"mailonly"}).Allowed)

	// rule applies only when the option is in effect
	rec.Email = ""
	assert.True(t, engine.Decide(rec, nil).Allowed)
}

func TestRegisterRejectsConflicts(t *testing.T) {
	engine := NewEngine()
	rule := Rule{Reason: "x", Allow: func(*members.Record) bool { return true }}

	require.ErrorIs(t, engine.Register(OptionTeamOnly, rule), ErrRuleConflict)
	require.NoError(t, engine.Register("custom", rule))
	require.ErrorIs(t, engine.Register("custom", rule), ErrRuleConflict)
	require.ErrorIs(t, engine.Register("bad token", rule), ErrInvalidOption)
	require.Error(t, engine.Register("nocheck", Rule{Reason: "x"}))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Sorry, you can't login because you are not a team member.",
		Message(ReasonNotTeamMember, language.English))
	assert.Equal(t, "Vous n'êtes pas un membre actif.", Message(ReasonInactiveMember, language.French))
	assert.Equal(t, "You are not allowed to use this application.", Message("custom", language.English))
}
