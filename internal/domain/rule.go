package domain

import id "consentgate/pkg/domain"

// MatchType selects how a display rule's URL pattern is evaluated against the
// current navigation context.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
	MatchRegex      MatchType = "regex"
)

// TriggerType selects when a matched rule presents its disclosure.
type TriggerType string

const (
	TriggerPageLoad TriggerType = "page_load"
	TriggerElement  TriggerType = "element"
)

// WildcardPattern is the universal URL pattern. A rule carrying it governs
// every page and is the only kind of rule allowed to omit its activity set.
const WildcardPattern = "*"

// DisplayRule selects which activities and purposes to present under which
// navigation conditions. Rules are read-only configuration.
type DisplayRule struct {
	ID         id.ID
	Name       string
	URLPattern string
	MatchType  MatchType
	// Priority orders rule evaluation, higher first. Zero means the
	// configuration omitted it and the default applies.
	Priority int
	Trigger  TriggerType
	// ElementSelector, when set, requires the referenced page element to be
	// present before the rule can govern.
	ElementSelector string
	// ActivityIDs restricts the presented catalog. Mandatory for usable
	// non-wildcard rules.
	ActivityIDs []id.ID
	// PurposeFilter optionally restricts purposes per retained activity. An
	// activity absent from the map, or mapped to an empty set, keeps all its
	// purposes.
	PurposeFilter map[id.ID][]id.ID
	// NoticeOverride optionally replaces the default notice text key.
	NoticeOverride string
}

// EffectivePriority resolves the rule's evaluation priority, applying the
// default when configuration omitted it.
func (r DisplayRule) EffectivePriority() int {
	if r.Priority == 0 {
		return id.DefaultRulePriority
	}
	return r.Priority
}

// IsWildcard reports whether the rule governs every URL.
func (r DisplayRule) IsWildcard() bool {
	return r.URLPattern == WildcardPattern
}
