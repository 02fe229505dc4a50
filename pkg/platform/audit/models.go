package audit

import "time"

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// consent submissions, revocations, age-verification outcomes.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: category releases, gating escapes, retry exhaustion.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from engine logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	WidgetID  string
	// VisitorID is the identity the event applies to; empty for events not
	// tied to a visitor (e.g. classification of a page resource).
	VisitorID string
	Action    string
	// Subject names what the action applied to: an activity id, a resource
	// location, a storage key.
	Subject  string
	Decision string
	Reason   string
}

// Action values emitted by the engine.
type Action string

const (
	// Consent lifecycle
	EventConsentSubmitted Action = "consent_submitted"
	EventConsentRevoked   Action = "consent_revoked"
	EventConsentAdopted   Action = "consent_adopted"
	// EventConsentRecorded is the authority-side counterpart of a
	// submission reaching storage.
	EventConsentRecorded Action = "consent_recorded"

	// Verification
	EventAgeOutcomeApplied   Action = "age_outcome_applied"
	EventIdentityStabilized  Action = "identity_stabilized"
	EventVerificationBlocked Action = "verification_blocked"

	// Gating
	EventResourceBlocked  Action = "resource_blocked"
	EventCategoryReleased Action = "category_released"
	EventGatingEscape     Action = "gating_escape"
	EventStorageCleared   Action = "storage_cleared"
)
