package events

import (
	"time"

	"github.com/shiftaiot/iot-platform/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignedUp   EventType = "user_signed_up"
	EventUserSignedIn   EventType = "user_signed_in"
	EventSignInFailed   EventType = "sign_in_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventUserLoggedOut  EventType = "user_logged_out"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Subject        string      `json:"subject"`
	UserID         string      `json:"user_id,omitempty"`
	Role           domain.Role `json:"role,omitempty"`
	OrganizationID string      `json:"organization_id,omitempty"`
}

// Event represents an authentication event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SignInFailedPayload payload.
type SignInFailedPayload struct {
	Reason string `json:"reason"`
}

// LoggedOutPayload payload.
type LoggedOutPayload struct {
	Revoked bool `json:"revoked"`
}
