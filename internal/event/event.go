package event

import (
	"context"
	"encoding/json"
	"time"
)

// Types emitted by the identity core. Consumers key dispatch off these.
const (
	TypeAccountRegistered = "account.registered"
	TypeAccountVerified   = "account.verified"
	TypeLoginSucceeded    = "auth.login_succeeded"
	TypeLoginFailed       = "auth.login_failed"
	TypeAccountLocked     = "auth.account_locked"
	TypePasswordReset     = "account.password_reset"
	TypeTwoFactorEnabled  = "account.twofactor_enabled"
	TypeTwoFactorDisabled = "account.twofactor_disabled"
	TypeSessionsRevoked   = "auth.sessions_revoked"
)

// Event is the envelope every emitted record shares. AccountID keys the
// Kafka message so per-account ordering holds within a partition.
type Event struct {
	Type       string         `json:"type"`
	AccountID  string         `json:"account_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with the current time.
func New(eventType, accountID, email string) Event {
	return Event{
		Type:       eventType,
		AccountID:  accountID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// With attaches a data field and returns the event for chaining.
func (e Event) With(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any, 2)
	}
	e.Data[key] = value
	return e
}

// Marshal renders the JSON payload for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Emitter publishes identity events for downstream consumers. Emission is
// best effort: callers log failures but never fail the user-facing
// operation over them.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

// NopEmitter discards every event. Used when no broker is configured.
type NopEmitter struct{}

var _ Emitter = NopEmitter{}

func (NopEmitter) Emit(context.Context, Event) error { return nil }
func (NopEmitter) Close() error                      { return nil }
