// Package authz decides whether a member may use an OAuth client.
//
// Purpose:
//
//	Given a member record and the options in effect for a request (the
//	client's declared options merged with the requested scopes), the Engine
//	returns an Outcome: allowed with the member's claims, or denied with a
//	user-facing reason.
//
// Key Responsibilities:
//   - Parse and validate option tokens (see ParseOptions, MergeOptions)
//   - Evaluate the built-in rules: active membership, teamonly, uptodate
//   - Evaluate rules registered for custom options
//   - Render denial reasons in the negotiated language
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Register may be called while Decide
//	is running on other goroutines.
package authz

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/galette-community/plugin-oauth2/internal/claims"
	"github.com/galette-community/plugin-oauth2/internal/members"
)

// ErrAuthorizationDenied matches every *DeniedError.
var ErrAuthorizationDenied = errors.New("authz: authorization denied")

// ErrRuleConflict is returned when registering a rule for an option that
// already has one.
var ErrRuleConflict = errors.New("authz: option already has a rule")

// DeniedError carries the reasons a member was refused.
type DeniedError struct {
	Reason     Reason
	Violations []Reason
}

func (e *DeniedError) Error() string {
	if len(e.Violations) > 1 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = string(v)
		}
		return fmt.Sprintf("authz: denied: %s", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("authz: denied: %s", e.Reason)
}

// Is makes errors.Is(err, ErrAuthorizationDenied) hold.
func (e *DeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

// Rule is an extra check attached to a custom option. Allow returns false
// when the member must be refused with Reason.
type Rule struct {
	Reason Reason
	Allow  func(rec *members.Record) bool
}

// Outcome is the result of a decision. It is never persisted.
type Outcome struct {
	Allowed    bool
	Claims     *claims.Claims
	Reason     Reason
	Violations []Reason
}

// Err returns nil when allowed, a *DeniedError otherwise.
func (o Outcome) Err() error {
	if o.Allowed {
		return nil
	}
	return &DeniedError{Reason: o.Reason, Violations: o.Violations}
}

// Engine evaluates the built-in rules plus any registered custom ones.
type Engine struct {
	mu     sync.RWMutex
	custom map[Option]Rule
	order  []Option
}

// NewEngine returns an engine with only the built-in rules.
func NewEngine() *Engine {
	return &Engine{custom: make(map[Option]Rule)}
}

// Register binds a custom option to a rule.
func (e *Engine) Register(opt Option, rule Rule) error {
	if _, err := ParseOption(string(opt)); err != nil {
		return err
	}
	if rule.Allow == nil || rule.Reason == "" {
		return fmt.Errorf("authz: rule for %q needs a reason and a check", opt)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.custom[opt]; exists || opt.Builtin() {
		return fmt.Errorf("%w: %q", ErrRuleConflict, opt)
	}
	e.custom[opt] = rule
	e.order = append(e.order, opt)
	return nil
}

// Decide evaluates every applicable rule. The primary reason is the first
// violation in evaluation order: inactive, teamonly, uptodate, then custom
// rules in registration order.
func (e *Engine) Decide(rec *members.Record, opts Options) Outcome {
	var violations []Reason

	if rec == nil || !rec.Active {
		violations = append(violations, ReasonInactiveMember)
	}
	if rec != nil {
		if opts.Has(OptionTeamOnly) && !rec.Admin && !rec.Staff && !rec.GroupManager {
			violations = append(violations, ReasonNotTeamMember)
		}
		if opts.Has(OptionUpToDate) && !rec.UpToDate {
			violations = append(violations, ReasonNotUpToDate)
		}

		e.mu.RLock()
		for _, opt := range e.order {
			if !opts.Has(opt) {
				continue
			}
			if rule := e.custom[opt]; !rule.Allow(rec) {
				violations = append(violations, rule.Reason)
			}
		}
		e.mu.RUnlock()
	}

	if len(violations) > 0 {
		return Outcome{Reason: violations[0], Violations: violations}
	}

	c, err := claims.Map(rec)
	if err != nil {
		return Outcome{Reason: ReasonInactiveMember, Violations: []Reason{ReasonInactiveMember}}
	}
	return Outcome{Allowed: true, Claims: c}
}
