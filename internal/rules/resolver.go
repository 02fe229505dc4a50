package rules

import (
	"log/slog"
	"sort"

	"consentgate/internal/domain"
	id "consentgate/pkg/domain"
)

// ElementChecker is the single page capability the resolver needs: testing
// whether a rule's referenced element is present.
type ElementChecker interface {
	ElementExists(selector string) bool
}

// NavigationContext describes the page the engine is deciding for.
type NavigationContext struct {
	URL  string
	Page ElementChecker
}

// Resolution is the resolver's answer: at most one governing rule plus the
// filtered activity set, or no presentation at all.
type Resolution struct {
	// Present is false when nothing should be shown. This is the fail-closed
	// branch: configured rules with no match, a non-presentable rule, or
	// filtering that leaves nothing.
	Present bool
	// Rule is the governing rule; nil when no rules exist and the default
	// full catalog is shown.
	Rule       *domain.DisplayRule
	Activities domain.ActivitySet
}

// Resolver selects the governing display rule for a navigation context and
// filters the activity catalog accordingly. It is stateless apart from a
// compiled-regex cache.
type Resolver struct {
	logger  *slog.Logger
	matcher *urlMatcher
}

func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, matcher: newURLMatcher(logger)}
}

// Resolve picks the governing rule: usable rules are ordered by descending
// priority (ties keep configuration order) and the first whose URL pattern
// and element condition both hold wins.
func (r *Resolver) Resolve(ruleSet []domain.DisplayRule, nav NavigationContext, activities domain.ActivitySet) Resolution {
	usable := filterUsable(ruleSet, r.logger)

	if len(usable) == 0 {
		if len(ruleSet) > 0 {
			// Rules were configured but none survived validation: treat it
			// like "rules exist, none matched" and fail closed.
			return Resolution{}
		}
		// No governance configured at all: default to the full catalog.
		return Resolution{Present: true, Activities: activities}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].EffectivePriority() > usable[j].EffectivePriority()
	})

	for i := range usable {
		rule := usable[i]
		if !r.matcher.matches(rule, nav.URL) {
			continue
		}
		if rule.ElementSelector != "" {
			if nav.Page == nil || !nav.Page.ElementExists(rule.ElementSelector) {
				continue
			}
		}
		return r.apply(rule, activities)
	}

	// Rules exist but none matched: fail closed.
	return Resolution{}
}

// apply filters the catalog through the governing rule.
func (r *Resolver) apply(rule domain.DisplayRule, activities domain.ActivitySet) Resolution {
	if !rule.IsWildcard() && len(rule.ActivityIDs) == 0 {
		// Non-presentable: a scoped rule that names no activities shows
		// nothing rather than defaulting to everything.
		r.logger.Warn("rule is non-presentable: scoped pattern with no activities",
			"rule_id", rule.ID.String())
		return Resolution{}
	}

	filtered := activities
	if len(rule.ActivityIDs) > 0 {
		filtered = r.filterActivities(rule, activities)
	}
	if len(filtered) == 0 {
		// Same fail-closed policy: filtering to nothing aborts presentation.
		r.logger.Warn("rule filtered catalog to zero activities, aborting presentation",
			"rule_id", rule.ID.String())
		return Resolution{}
	}

	filtered = r.filterPurposes(rule, filtered)

	return Resolution{Present: true, Rule: &rule, Activities: filtered}
}

func (r *Resolver) filterActivities(rule domain.DisplayRule, activities domain.ActivitySet) domain.ActivitySet {
	out := make(domain.ActivitySet, 0, len(rule.ActivityIDs))
	for _, want := range rule.ActivityIDs {
		act, ok := activities.ByID(want)
		if !ok {
			// Never substitute: an id the catalog doesn't know is dropped
			// and logged as a configuration mismatch.
			r.logger.Warn("rule references unknown activity",
				"rule_id", rule.ID.String(), "activity_id", want.String())
			continue
		}
		out = append(out, act)
	}
	return out
}

func (r *Resolver) filterPurposes(rule domain.DisplayRule, activities domain.ActivitySet) domain.ActivitySet {
	if len(rule.PurposeFilter) == 0 {
		return activities
	}
	out := make(domain.ActivitySet, 0, len(activities))
	for _, act := range activities {
		wanted, mentioned := rule.PurposeFilter[act.ID]
		if !mentioned || len(wanted) == 0 {
			// Unmentioned or empty-set activities keep all purposes.
			out = append(out, act)
			continue
		}
		keep := make(map[id.ID]bool, len(wanted))
		for _, pid := range wanted {
			keep[pid] = true
		}
		filtered := act
		filtered.Purposes = nil
		for _, p := range act.Purposes {
			if keep[p.ID] {
				filtered.Purposes = append(filtered.Purposes, p)
			}
		}
		out = append(out, filtered)
	}
	return out
}

// filterUsable drops rules missing required fields or carrying a pattern over
// the length ceiling. Individual bad rules never poison the set.
func filterUsable(ruleSet []domain.DisplayRule, logger *slog.Logger) []domain.DisplayRule {
	out := make([]domain.DisplayRule, 0, len(ruleSet))
	for _, rule := range ruleSet {
		if rule.URLPattern == "" || rule.MatchType == "" {
			logger.Warn("skipping rule missing required fields", "rule_id", rule.ID.String())
			continue
		}
		if len(rule.URLPattern) > id.MaxPatternLength {
			logger.Warn("skipping rule with oversized pattern",
				"rule_id", rule.ID.String(), "pattern_len", len(rule.URLPattern))
			continue
		}
		out = append(out, rule)
	}
	return out
}
