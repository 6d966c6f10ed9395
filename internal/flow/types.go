package flow

import (
	"context"

	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/members"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks -source=types.go

// CredentialVerifier checks a login/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, login, password string) (int64, error)
}

// MemberLoader loads the member record after authentication.
type MemberLoader interface {
	Load(ctx context.Context, id int64) (*members.Record, error)
}

// ClientRegistry exposes the per-client settings the flow needs.
type ClientRegistry interface {
	Options(clientID string) string
	LogoutURI(clientID string) string
}

// Decider runs the authorization rules.
type Decider interface {
	Decide(rec *members.Record, opts authz.Options) authz.Outcome
}

// LoginLimiter throttles repeated failures per login.
type LoginLimiter interface {
	IsLocked(ctx context.Context, login string) (bool, error)
	TrackFailedAttempt(ctx context.Context, login string) (int, bool, error)
	ClearAttempts(ctx context.Context, login string) error
}

// State is a step of the login state machine.
type State string

// States.
const (
	Anonymous            State = "anonymous"
	CredentialsSubmitted State = "credentials_submitted"
	Authenticated        State = "authenticated"
	AuthorizationChecked State = "authorization_checked"
	Completed            State = "completed"
	Denied               State = "denied"
)

// Failure classifies a Denied result.
type Failure string

// Failures. Values double as metric labels.
const (
	FailureNone                    Failure = ""
	FailureInvalidCredentials      Failure = "invalid_credentials"
	FailureAdminAccount            Failure = "admin_account"
	FailureLocked                  Failure = "locked"
	FailureMissingRequestParameter Failure = "missing_request_parameter"
	FailureInvalidRequest          Failure = "invalid_request"
	FailureAuthorizationDenied     Failure = "authorization_denied"
)

// Result is the outcome of Submit.
type Result struct {
	State    State
	Failure  Failure
	Reason   authz.Reason
	Redirect string
	MemberID int64
}
