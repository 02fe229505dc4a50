package domain

import (
	"time"

	id "consentgate/pkg/domain"
)

// ConsentStatus summarizes a visitor's decision across the presented
// activities. It is always derived from the accepted/rejected sets via
// ComputeStatus, never stored independently of them.
type ConsentStatus string

const (
	StatusAccepted ConsentStatus = "accepted"
	StatusRejected ConsentStatus = "rejected"
	StatusPartial  ConsentStatus = "partial"
	StatusRevoked  ConsentStatus = "revoked"
)

// ComputeStatus derives the consent status from the accepted and rejected
// activity sets. Returns false when both sets are empty: that is a user input
// error and no submission may be attempted.
func ComputeStatus(accepted, rejected []id.ID) (ConsentStatus, bool) {
	switch {
	case len(accepted) == 0 && len(rejected) == 0:
		return "", false
	case len(rejected) == 0:
		return StatusAccepted, true
	case len(accepted) == 0:
		return StatusRejected, true
	default:
		return StatusPartial, true
	}
}

// ConsentRecord captures a visitor's decision for one widget. It is created on
// first submission, mutated only by a new submission or explicit revocation,
// and expires passively: expiry is checked at read time, never purged.
type ConsentRecord struct {
	VisitorID id.VisitorID
	WidgetID  id.WidgetID
	Status    ConsentStatus
	Accepted  []id.ID
	Rejected  []id.ID
	// Per-activity purpose decisions. Keys are activity ids.
	AcceptedPurposes map[id.ID][]id.ID
	RejectedPurposes map[id.ID][]id.ID
	CreatedAt        time.Time
	// ExpiresAt derives from CreatedAt plus the configured consent duration
	// unless the authority overrode it explicitly.
	ExpiresAt     time.Time
	VerifiedEmail string
}

// IsExpired checks the record against its explicit expiry when present, or
// against CreatedAt plus the supplied duration otherwise.
func (r ConsentRecord) IsExpired(now time.Time, fallbackDuration time.Duration) bool {
	if !r.ExpiresAt.IsZero() {
		return !now.Before(r.ExpiresAt)
	}
	if r.CreatedAt.IsZero() {
		return true
	}
	return !now.Before(r.CreatedAt.Add(fallbackDuration))
}

// Decided reports whether the record names any accepted or rejected activity.
// A decided record is treated as sufficient to skip re-prompting on the
// current page. This is intentionally coarse: a visitor who rejected
// everything on one page counts as decided on pages governed by different
// activities.
func (r ConsentRecord) Decided() bool {
	return len(r.Accepted) > 0 || len(r.Rejected) > 0
}

// AcceptsActivity reports whether the record accepts the given activity.
func (r ConsentRecord) AcceptsActivity(activityID id.ID) bool {
	for _, a := range r.Accepted {
		if a == activityID {
			return true
		}
	}
	return false
}
