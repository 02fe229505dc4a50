package domain

import id "consentgate/pkg/domain"

// Activity is a disclosed data-processing operation composed of one or more
// purposes. Activities and purposes are read-only configuration within a
// snapshot; the engine never mutates them.
type Activity struct {
	ID   id.ID
	Name string
	// TrackingCategory links the activity to the resource-gating category it
	// governs. Empty means the activity gates nothing.
	TrackingCategory string
	Purposes         []Purpose
}

// Purpose is a specific reason data is processed, with a legal basis and the
// data categories it touches.
type Purpose struct {
	ID         id.ID
	Name       string
	LegalBasis LegalBasis
	Data       []DataRetention
	// Mandatory purposes force their parent activity to the accepted state
	// and disable its toggle during preference capture.
	Mandatory bool
}

// LegalBasis enumerates the recognized processing bases.
type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisLegitimateInterest LegalBasis = "legitimate_interest"
)

// DataRetention pairs a processed data category with its retention period.
type DataRetention struct {
	Category  string
	Retention string
}

// ActivitySet is the canonical, normalized activity catalog for one snapshot.
// Order is the presentation order from configuration.
type ActivitySet []Activity

// Clone returns an independent copy of the set. Presentation code rewrites
// activity names for translation and must never write through to the catalog.
func (s ActivitySet) Clone() ActivitySet {
	if s == nil {
		return nil
	}
	out := make(ActivitySet, len(s))
	copy(out, s)
	return out
}

// ByID returns the activity with the given id, if present.
func (s ActivitySet) ByID(activityID id.ID) (Activity, bool) {
	for _, a := range s {
		if a.ID == activityID {
			return a, true
		}
	}
	return Activity{}, false
}

// IDs returns the activity ids in presentation order.
func (s ActivitySet) IDs() []id.ID {
	ids := make([]id.ID, 0, len(s))
	for _, a := range s {
		ids = append(ids, a.ID)
	}
	return ids
}

// CategoriesFor returns the distinct tracking categories governed by the
// given activity ids, in catalog order.
func (s ActivitySet) CategoriesFor(activityIDs []id.ID) []string {
	wanted := make(map[id.ID]bool, len(activityIDs))
	for _, aid := range activityIDs {
		wanted[aid] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, a := range s {
		if !wanted[a.ID] || a.TrackingCategory == "" || seen[a.TrackingCategory] {
			continue
		}
		seen[a.TrackingCategory] = true
		out = append(out, a.TrackingCategory)
	}
	return out
}

// HasMandatoryPurpose reports whether any purpose of the activity is marked
// mandatory by configuration.
func (a Activity) HasMandatoryPurpose() bool {
	for _, p := range a.Purposes {
		if p.Mandatory {
			return true
		}
	}
	return false
}
