package snapshot

import (
	"log/slog"
	"time"

	"consentgate/internal/domain"
	id "consentgate/pkg/domain"
)

// DefaultConsentDuration applies when configuration omits the duration.
const DefaultConsentDuration = 180 * 24 * time.Hour

// Normalize converts a decoded wire document into the canonical Snapshot.
// Malformed entries (bad ids, oversized patterns, missing required fields)
// are dropped individually and logged; a single bad entry never fails the
// whole configuration.
func Normalize(cfg WireConfig, logger *slog.Logger, now time.Time) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	widgetID, err := id.ParseWidgetID(cfg.WidgetID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		WidgetID:    widgetID,
		Activities:  normalizeActivities(cfg, logger),
		Rules:       normalizeRules(cfg.Rules, logger),
		Features:    normalizeFeatures(cfg.Features, logger),
		StorageKeys: cfg.Storage,
		FetchedAt:   now,
	}

	if cfg.Blocking != nil {
		for _, c := range cfg.Blocking.Categories {
			if c.Category == "" {
				logger.Warn("dropping classification row without category")
				continue
			}
			snap.Categories = append(snap.Categories, CategoryPatterns{
				Category:         c.Category,
				LocationPatterns: capPatterns(c.LocationPatterns, c.Category, logger),
				ContentPatterns:  capPatterns(c.ContentPatterns, c.Category, logger),
			})
		}
	}

	return snap, nil
}

// normalizeActivities flattens whichever generation the document carries. The
// v2 shape wins when both are present; legacy documents are migrated here and
// nowhere else.
func normalizeActivities(cfg WireConfig, logger *slog.Logger) domain.ActivitySet {
	if len(cfg.Activities) > 0 {
		set := make(domain.ActivitySet, 0, len(cfg.Activities))
		seen := make(map[id.ID]bool)
		for _, wa := range cfg.Activities {
			aid, err := id.ParseID(wa.ID)
			if err != nil {
				logger.Warn("dropping activity with invalid id", "raw_id", wa.ID)
				continue
			}
			if seen[aid] {
				logger.Warn("dropping duplicate activity id", "activity_id", wa.ID)
				continue
			}
			seen[aid] = true
			set = append(set, domain.Activity{
				ID:               aid,
				Name:             wa.Name,
				TrackingCategory: wa.TrackingCategory,
				Purposes:         normalizePurposes(wa.Purposes, wa.ID, logger),
			})
		}
		return set
	}

	if cfg.Template == nil {
		return nil
	}

	// Legacy migration: template.activities[].dataProcessings -> purposes.
	set := make(domain.ActivitySet, 0, len(cfg.Template.Activities))
	seen := make(map[id.ID]bool)
	for _, la := range cfg.Template.Activities {
		aid, err := id.ParseID(la.ID)
		if err != nil {
			logger.Warn("dropping legacy activity with invalid id", "raw_id", la.ID)
			continue
		}
		if seen[aid] {
			logger.Warn("dropping duplicate legacy activity id", "activity_id", la.ID)
			continue
		}
		seen[aid] = true
		set = append(set, domain.Activity{
			ID:               aid,
			Name:             la.Label,
			TrackingCategory: la.TrackingCategory,
			Purposes:         normalizePurposes(la.DataProcessings, la.ID, logger),
		})
	}
	return set
}

func normalizePurposes(in []WirePurpose, activityID string, logger *slog.Logger) []domain.Purpose {
	out := make([]domain.Purpose, 0, len(in))
	for _, wp := range in {
		pid, err := id.ParseID(wp.ID)
		if err != nil {
			logger.Warn("dropping purpose with invalid id",
				"activity_id", activityID, "raw_id", wp.ID)
			continue
		}
		p := domain.Purpose{
			ID:         pid,
			Name:       wp.Name,
			LegalBasis: domain.LegalBasis(wp.LegalBasis),
			Mandatory:  wp.Mandatory,
		}
		for _, d := range wp.Data {
			p.Data = append(p.Data, domain.DataRetention{
				Category:  d.Category,
				Retention: d.Retention,
			})
		}
		out = append(out, p)
	}
	return out
}

// normalizeRules drops rules missing required fields or exceeding the pattern
// ceiling. Match semantics are validated later, at resolution time; the regex
// itself is only length-checked here.
func normalizeRules(in []WireRule, logger *slog.Logger) []domain.DisplayRule {
	out := make([]domain.DisplayRule, 0, len(in))
	for _, wr := range in {
		rid, err := id.ParseID(wr.ID)
		if err != nil {
			logger.Warn("dropping rule with invalid id", "raw_id", wr.ID)
			continue
		}
		if wr.URLPattern == "" || wr.MatchType == "" {
			logger.Warn("dropping rule missing pattern or match type", "rule_id", wr.ID)
			continue
		}
		if len(wr.URLPattern) > id.MaxPatternLength {
			logger.Warn("dropping rule with oversized pattern",
				"rule_id", wr.ID, "pattern_len", len(wr.URLPattern))
			continue
		}

		activityIDs, dropped := id.FilterIDs(wr.ActivityIDs)
		for _, d := range dropped {
			logger.Warn("dropping invalid activity id from rule", "rule_id", wr.ID, "raw_id", d)
		}

		rule := domain.DisplayRule{
			ID:              rid,
			Name:            wr.Name,
			URLPattern:      wr.URLPattern,
			MatchType:       domain.MatchType(wr.MatchType),
			Priority:        wr.Priority,
			Trigger:         domain.TriggerType(wr.Trigger),
			ElementSelector: wr.ElementSelector,
			ActivityIDs:     activityIDs,
			NoticeOverride:  wr.NoticeOverride,
		}
		if len(wr.PurposeFilter) > 0 {
			rule.PurposeFilter = make(map[id.ID][]id.ID, len(wr.PurposeFilter))
			for rawAct, rawPurposes := range wr.PurposeFilter {
				aid, err := id.ParseID(rawAct)
				if err != nil {
					logger.Warn("dropping purpose filter with invalid activity id",
						"rule_id", wr.ID, "raw_id", rawAct)
					continue
				}
				pids, droppedP := id.FilterIDs(rawPurposes)
				for _, d := range droppedP {
					logger.Warn("dropping invalid purpose id from rule filter",
						"rule_id", wr.ID, "raw_id", d)
				}
				rule.PurposeFilter[aid] = pids
			}
		}
		out = append(out, rule)
	}
	return out
}

func normalizeFeatures(in WireFeatures, logger *slog.Logger) Features {
	f := Features{
		IdentityViaEmail: in.IdentityViaEmail,
		ConsentDuration:  DefaultConsentDuration,
		Preview:          in.Preview,
	}
	switch domain.AgeVerificationMode(in.AgeVerificationMode) {
	case domain.AgeModeServer:
		f.AgeVerification = domain.AgeModeServer
	case domain.AgeModeSelfAttested:
		f.AgeVerification = domain.AgeModeSelfAttested
	case domain.AgeModeDisabled, "":
		f.AgeVerification = domain.AgeModeDisabled
	default:
		logger.Warn("unknown age verification mode, disabling", "mode", in.AgeVerificationMode)
		f.AgeVerification = domain.AgeModeDisabled
	}
	if in.ConsentDurationDays > 0 {
		f.ConsentDuration = time.Duration(in.ConsentDurationDays) * 24 * time.Hour
	}
	mandatory, dropped := id.FilterIDs(in.MandatoryPurposes)
	for _, d := range dropped {
		logger.Warn("dropping invalid mandatory purpose id", "raw_id", d)
	}
	f.MandatoryPurposeIDs = mandatory
	return f
}

func capPatterns(in []string, category string, logger *slog.Logger) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p == "" || len(p) > id.MaxPatternLength {
			logger.Warn("dropping unusable classification pattern",
				"category", category, "pattern_len", len(p))
			continue
		}
		out = append(out, p)
	}
	return out
}
