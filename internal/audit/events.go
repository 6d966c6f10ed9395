// Package audit records security-relevant events of the login flow.
//
// Purpose:
//
//	Every login, failed login, authorization denial, logout and first-use
//	redirect binding produces an Event. Emitters ship events to a log stream
//	or to Kafka.
//
// Dependencies:
//   - github.com/google/uuid: event ids
//   - github.com/rs/zerolog: LoggerEmitter
//   - github.com/segmentio/kafka-go: KafkaEmitter
//
// Debugging Notes:
//   - Events never carry passwords or client secrets
//   - Hash is the SHA-256 of the event payload with Hash cleared
//
// Thread Safety:
//   - Emitter implementations must be safe for concurrent use
//
// Error Handling:
//   - Emit returns errors for monitoring; callers log them and carry on
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one audit record.
type Event struct {
	EventID   uuid.UUID      `json:"event_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorType string         `json:"actor_type"`
	ClientID  string         `json:"client_id,omitempty"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Hash      string         `json:"hash"`
	CreatedAt time.Time      `json:"created_at"`
}

// Emitter defines the interface for audit event emission.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LoggerEmitter writes events to the structured log.
type LoggerEmitter struct {
	logger zerolog.Logger
}

// NewLoggerEmitter creates a logger-based audit emitter.
func NewLoggerEmitter(logger zerolog.Logger) *LoggerEmitter {
	return &LoggerEmitter{logger: logger.With().Str("component", "audit").Logger()}
}

// Emit logs the event. Never fails.
func (e *LoggerEmitter) Emit(_ context.Context, event Event) error {
	event = event.Sealed()
	e.logger.Info().
		Str("event_id", event.EventID.String()).
		Str("actor_id", event.ActorID).
		Str("actor_type", event.ActorType).
		Str("client_id", event.ClientID).
		Str("action", event.Action).
		Str("outcome", event.Outcome).
		Str("reason", event.Reason).
		Str("ip_address", event.IPAddress).
		Str("hash", event.Hash).
		Interface("metadata", event.Metadata).
		Msg("audit event")
	return nil
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// NewNoopEmitter creates a no-op audit emitter.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit discards the event.
func (NoopEmitter) Emit(context.Context, Event) error {
	return nil
}

// RequestMeta is the caller information attached to events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Resource  string
}

// MetaFromRequest extracts RequestMeta from r.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Resource:  r.Method + " " + r.URL.Path,
	}
}

// BuildEvent constructs an event with a fresh id and timestamp.
func BuildEvent(action, outcome, actorType, actorID string, meta RequestMeta) Event {
	return Event{
		EventID:   uuid.New(),
		ActorID:   actorID,
		ActorType: actorType,
		Action:    action,
		Outcome:   outcome,
		Resource:  meta.Resource,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// Sealed returns a copy of the event with Hash computed.
func (e Event) Sealed() Event {
	e.Hash = computeEventHash(e)
	return e
}

func computeEventHash(event Event) string {
	event.Hash = ""
	payload, err := json.Marshal(event)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", event))
	}
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Actions.
const (
	ActionLogin               = "oauth2.login"
	ActionLoginFailed         = "oauth2.login_failed"
	ActionAuthorizationDenied = "oauth2.authorization_denied"
	ActionLogout              = "oauth2.logout"
	ActionRedirectBound       = "oauth2.redirect_bound"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Actor types.
const (
	ActorTypeMember    = "member"
	ActorTypeAnonymous = "anonymous"
	ActorTypeClient    = "client"
)
