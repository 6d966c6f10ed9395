// Package flow implements the login state machine between the gated
// authorize endpoint and the login page.
//
// Purpose:
//
//	A browser lands on /login with the original authorize request in
//	redirect_url. Begin captures that request in the session. Submit checks
//	the credentials, runs the authorization rules for the requested client
//	and, on success, sends the browser back to /authorize with the captured
//	parameters.
//
// States:
//
//	Anonymous -> CredentialsSubmitted -> Authenticated -> AuthorizationChecked -> Completed
//	any step may end in Denied, which is absorbing for the submission.
//
// Key Responsibilities:
//   - Maintain isLoggedIn (no/pending/yes) and user_id in the session
//   - Fail closed when the captured request lacks a required parameter
//   - Answer a repeated submission from a logged in session with the same
//     redirect
//   - Tear the identity down before reporting an authorization denial
//   - Record metrics and audit events for every outcome
//
// Thread Safety:
//
//	Service is stateless and safe for concurrent use. Sessions are per
//	request and must not be shared.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/galette-community/plugin-oauth2/internal/audit"
	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/members"
	"github.com/galette-community/plugin-oauth2/internal/metrics"
	"github.com/galette-community/plugin-oauth2/internal/session"
)

// ErrMissingRequestParameter is reported when the captured authorize request
// lacks response_type, client_id, state or redirect_uri.
var ErrMissingRequestParameter = errors.New("flow: missing request parameter")

// Dependencies are the collaborators of the Service.
type Dependencies struct {
	Verifier CredentialVerifier
	Loader   MemberLoader
	Registry ClientRegistry
	Decider  Decider
	// Limiter is optional.
	Limiter LoginLimiter
	Emitter audit.Emitter
	Logger  zerolog.Logger

	// AuthorizePath and LoginPath include the public base path.
	AuthorizePath string
	LoginPath     string
}

// Service runs the login state machine.
type Service struct {
	verifier      CredentialVerifier
	loader        MemberLoader
	registry      ClientRegistry
	decider       Decider
	limiter       LoginLimiter
	emitter       audit.Emitter
	logger        zerolog.Logger
	authorizePath string
	loginPath     string
}

// NewService creates a Service.
func NewService(deps Dependencies) *Service {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = audit.NewNoopEmitter()
	}
	authorizePath := deps.AuthorizePath
	if authorizePath == "" {
		authorizePath = "/authorize"
	}
	loginPath := deps.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Service{
		verifier:      deps.Verifier,
		loader:        deps.Loader,
		registry:      deps.Registry,
		decider:       deps.Decider,
		limiter:       deps.Limiter,
		emitter:       emitter,
		logger:        deps.Logger.With().Str("component", "login-flow").Logger(),
		authorizePath: authorizePath,
		loginPath:     loginPath,
	}
}

// Begin captures the authorize parameters carried by redirectURL, the
// URL-encoded request URI the gate sent the browser away from. It reports
// whether anything was captured. Without a redirect URL the session keeps
// what an earlier visit captured.
func (s *Service) Begin(sess *session.Session, redirectURL string) bool {
	if redirectURL == "" {
		return false
	}
	target, err := url.Parse(redirectURL)
	if err != nil {
		s.logger.Debug().Err(err).Msg("ignoring unparsable redirect_url")
		return false
	}
	sess.SetRequestArgs(session.RequestArgsFromQuery(target.Query()))
	return true
}

// Submit processes the login form. Only infrastructure failures are
// returned as errors; every refusal is a Denied result.
func (s *Service) Submit(ctx context.Context, sess *session.Session, login, password string, meta audit.RequestMeta) (Result, error) {
	login = strings.TrimSpace(login)
	args := sess.RequestArgs()

	if memberID, ok := sess.UserID(); ok && sess.LoginState() == session.LoggedIn && len(args.Missing()) == 0 {
		s.logger.Debug().Int64("member_id", memberID).Str("client_id", args.ClientID).Msg("already logged in")
		return s.completed(args, memberID), nil
	}

	// CredentialsSubmitted: whatever was there before is gone.
	sess.ClearIdentity()

	if s.limiter != nil && login != "" {
		locked, err := s.limiter.IsLocked(ctx, login)
		if err != nil {
			s.logger.Warn().Err(err).Msg("lockout check failed")
		} else if locked {
			return s.deny(ctx, sess, args, login, meta, FailureLocked, ""), nil
		}
	}

	memberID, err := s.verifier.Verify(ctx, login, password)
	switch {
	case errors.Is(err, members.ErrAdminAccount):
		return s.deny(ctx, sess, args, login, meta, FailureAdminAccount, ""), nil
	case errors.Is(err, members.ErrInvalidCredentials):
		s.trackFailure(ctx, login)
		return s.deny(ctx, sess, args, login, meta, FailureInvalidCredentials, ""), nil
	case err != nil:
		return Result{State: CredentialsSubmitted}, fmt.Errorf("flow: verify credentials: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.ClearAttempts(ctx, login); err != nil {
			s.logger.Warn().Err(err).Msg("failed to clear login attempts")
		}
	}

	// Authenticated.
	sess.SetUserID(memberID)
	sess.SetLoginState(session.Pending)

	if missing := args.Missing(); len(missing) > 0 {
		s.logger.Info().
			Err(fmt.Errorf("%w: %s", ErrMissingRequestParameter, strings.Join(missing, ","))).
			Msg("captured authorize request is incomplete")
		res := s.deny(ctx, sess, args, strconv.FormatInt(memberID, 10), meta, FailureMissingRequestParameter, "")
		res.Redirect = s.loginPath
		return res, nil
	}

	opts, err := authz.MergeOptions(s.registry.Options(args.ClientID), args.Scopes())
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", args.ClientID).Msg("rejecting malformed options")
		return s.deny(ctx, sess, args, strconv.FormatInt(memberID, 10), meta, FailureInvalidRequest, ""), nil
	}

	rec, err := s.loader.Load(ctx, memberID)
	if errors.Is(err, members.ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		sess.ClearIdentity()
		return Result{State: Authenticated, MemberID: memberID}, fmt.Errorf("flow: load member %d: %w", memberID, err)
	}

	// AuthorizationChecked.
	outcome := s.decider.Decide(rec, opts)
	if !outcome.Allowed {
		metrics.RecordAuthorizationDenied(string(outcome.Reason))
		res := s.deny(ctx, sess, args, strconv.FormatInt(memberID, 10), meta, FailureAuthorizationDenied, outcome.Reason)
		res.MemberID = memberID
		return res, nil
	}
	metrics.RecordAuthorizationAllowed()

	// Completed.
	sess.SetLoginState(session.LoggedIn)
	metrics.RecordLoginSuccess()

	event := audit.BuildEvent(audit.ActionLogin, audit.OutcomeSuccess, audit.ActorTypeMember, strconv.FormatInt(memberID, 10), meta)
	event.ClientID = args.ClientID
	event.Metadata = map[string]any{"options": opts.Strings()}
	s.emit(ctx, event)

	return s.completed(args, memberID), nil
}

func (s *Service) completed(args session.RequestArgs, memberID int64) Result {
	return Result{
		State:    Completed,
		Redirect: s.authorizePath + "?" + args.Query().Encode(),
		MemberID: memberID,
	}
}

// Logout clears the identity and the captured request and returns where to
// send the browser: the client's logout URI, "/" by default. The client is
// remembered so that logging out again returns the same destination.
func (s *Service) Logout(ctx context.Context, sess *session.Session, meta audit.RequestMeta) string {
	clientID := sess.RequestArgs().ClientID
	if clientID == "" {
		clientID = sess.LogoutClient()
	}
	memberID, wasLoggedIn := sess.UserID()

	sess.ClearIdentity()
	sess.ClearRequestArgs()
	sess.SetLogoutClient(clientID)

	if wasLoggedIn {
		metrics.RecordLogout()
		event := audit.BuildEvent(audit.ActionLogout, audit.OutcomeSuccess, audit.ActorTypeMember, strconv.FormatInt(memberID, 10), meta)
		event.ClientID = clientID
		s.emit(ctx, event)
	}
	return s.registry.LogoutURI(clientID)
}

// deny moves the session to Denied: identity cleared, request arguments
// kept so the user can retry from the re-rendered form.
func (s *Service) deny(ctx context.Context, sess *session.Session, args session.RequestArgs, actor string, meta audit.RequestMeta, failure Failure, reason authz.Reason) Result {
	sess.ClearIdentity()
	metrics.RecordLoginFailure(string(failure))

	action := audit.ActionLoginFailed
	if failure == FailureAuthorizationDenied {
		action = audit.ActionAuthorizationDenied
	}
	event := audit.BuildEvent(action, audit.OutcomeFailure, audit.ActorTypeAnonymous, actor, meta)
	event.ClientID = args.ClientID
	event.Reason = string(failure)
	if reason != "" {
		event.Reason = string(reason)
	}
	s.emit(ctx, event)

	s.logger.Info().
		Str("client_id", args.ClientID).
		Str("failure", string(failure)).
		Str("reason", string(reason)).
		Msg("login denied")

	return Result{State: Denied, Failure: failure, Reason: reason}
}

func (s *Service) trackFailure(ctx context.Context, login string) {
	if s.limiter == nil || login == "" {
		return
	}
	_, locked, err := s.limiter.TrackFailedAttempt(ctx, login)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to track login attempt")
		return
	}
	if locked {
		metrics.RecordLockout()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to emit audit event")
	}
}
