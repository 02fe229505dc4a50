package snapshot

import (
	"time"

	"consentgate/internal/domain"
	id "consentgate/pkg/domain"
)

// Snapshot is the canonical configuration the engine works with. It is
// produced exactly once per fetch by Normalize; nothing downstream ever sees
// a wire shape.
type Snapshot struct {
	WidgetID   id.WidgetID
	Rules      []domain.DisplayRule
	Activities domain.ActivitySet
	Features   Features
	// Classification tables, ordered. May be empty, in which case only the
	// built-in defaults apply.
	Categories []CategoryPatterns
	// StorageKeys maps a category to storage keys deleted on revocation of
	// that category, merged with well-known defaults by the gate.
	StorageKeys map[string][]string
	FetchedAt   time.Time
}

// Features carries the per-widget feature flags.
type Features struct {
	AgeVerification     domain.AgeVerificationMode
	IdentityViaEmail    bool
	ConsentDuration     time.Duration
	MandatoryPurposeIDs []id.ID
	// Preview marks an authoring/test context: shortest polling interval,
	// nothing persisted remotely.
	Preview bool
}

// CategoryPatterns is one row of the ordered classification table.
type CategoryPatterns struct {
	Category         string
	LocationPatterns []string
	ContentPatterns  []string
}

// MandatoryPurposes returns the set of purpose ids configured as mandatory,
// for O(1) lookups during preference capture.
func (s *Snapshot) MandatoryPurposes() map[id.ID]bool {
	out := make(map[id.ID]bool, len(s.Features.MandatoryPurposeIDs))
	for _, p := range s.Features.MandatoryPurposeIDs {
		out[p] = true
	}
	return out
}
