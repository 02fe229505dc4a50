package snapshot

import "encoding/json"

// Wire shapes. Two generations of configuration exist in the field: the
// legacy shape nests activities (and their processings) under a template
// object, the v2 shape carries flat activity and purpose arrays. Both decode
// into WireConfig as a tagged union; Normalize picks exactly one branch.

// WireConfig is the raw configuration document as fetched.
type WireConfig struct {
	WidgetID string `json:"widgetId"`
	// V2 shape.
	Activities []WireActivity `json:"activities,omitempty"`
	// Legacy shape.
	Template *WireTemplate `json:"template,omitempty"`

	Rules    []WireRule          `json:"displayRules,omitempty"`
	Features WireFeatures        `json:"features"`
	Blocking *WireBlocking       `json:"resourceBlocking,omitempty"`
	Storage  map[string][]string `json:"storageKeys,omitempty"`
}

// WireActivity is the v2 activity shape.
type WireActivity struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	TrackingCategory string        `json:"trackingCategory,omitempty"`
	Purposes         []WirePurpose `json:"purposes"`
}

// WirePurpose is shared by both generations.
type WirePurpose struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LegalBasis string `json:"legalBasis"`
	Data       []struct {
		Category  string `json:"category"`
		Retention string `json:"retention"`
	} `json:"data,omitempty"`
	Mandatory bool `json:"mandatory,omitempty"`
}

// WireTemplate is the legacy nesting: activities live under the template and
// purposes are called "dataProcessings".
type WireTemplate struct {
	Activities []struct {
		ID               string        `json:"activityId"`
		Label            string        `json:"label"`
		TrackingCategory string        `json:"trackingCategory,omitempty"`
		DataProcessings  []WirePurpose `json:"dataProcessings"`
	} `json:"activities"`
}

// WireRule is the display-rule wire shape, identical in both generations.
type WireRule struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	URLPattern      string              `json:"urlPattern"`
	MatchType       string              `json:"matchType"`
	Priority        int                 `json:"priority,omitempty"`
	Trigger         string              `json:"trigger,omitempty"`
	ElementSelector string              `json:"elementSelector,omitempty"`
	ActivityIDs     []string            `json:"activityIds,omitempty"`
	PurposeFilter   map[string][]string `json:"purposeFilter,omitempty"`
	NoticeOverride  string              `json:"noticeOverride,omitempty"`
}

// WireFeatures carries feature flags; ConsentDurationDays of zero means the
// default applies.
type WireFeatures struct {
	AgeVerificationMode string   `json:"ageVerificationMode,omitempty"`
	IdentityViaEmail    bool     `json:"identityViaEmail,omitempty"`
	ConsentDurationDays int      `json:"consentDurationDays,omitempty"`
	MandatoryPurposes   []string `json:"mandatoryPurposes,omitempty"`
	Preview             bool     `json:"preview,omitempty"`
}

// WireBlocking is the classification table wire shape.
type WireBlocking struct {
	Categories []struct {
		Category         string   `json:"category"`
		LocationPatterns []string `json:"locationPatterns,omitempty"`
		ContentPatterns  []string `json:"contentPatterns,omitempty"`
	} `json:"categories"`
}

// Decode parses a raw configuration document.
func Decode(raw []byte) (WireConfig, error) {
	var cfg WireConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return WireConfig{}, err
	}
	return cfg, nil
}
