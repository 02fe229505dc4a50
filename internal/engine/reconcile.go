package engine

import (
	"context"
	"errors"

	"consentgate/internal/cache"
	"consentgate/internal/domain"
	"consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

// reconcileLocked settles the consent on record at startup: the authority is
// ground truth when reachable, the local cache is the offline fallback, and
// an expired record from either source is discarded. Callers hold e.mu.
func (e *Engine) reconcileLocked(ctx context.Context) {
	duration := e.snap.Features.ConsentDuration
	key := cache.Key(e.cfg.WidgetID.String(), consentKey)

	result, err := e.authority.QueryConsent(ctx, e.cfg.WidgetID, e.identity.Current())
	switch {
	case err == nil:
		if result.DurableIdentity != "" {
			if _, serr := e.identity.Stabilize(ctx, result.DurableIdentity); serr != nil {
				e.logger.Warn("durable identity persist failed", "error", serr.Error())
			}
		}
		if result.Record.IsExpired(e.now(), duration) {
			e.logger.Info("remote consent record expired, re-prompting")
			e.dropCachedConsent(ctx, key)
			return
		}
		record := result.Record
		e.consent = &record
		if err := e.persistConsent(ctx, record); err != nil {
			e.logger.Warn("consent cache refresh failed", "error", err.Error())
		}
		e.emit(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: e.now(),
			WidgetID:  e.cfg.WidgetID.String(),
			VisitorID: e.identity.Current().String(),
			Action:    string(audit.EventConsentAdopted),
			Decision:  string(record.Status),
			Reason:    adoptionReason(result.Merged),
		})
		return

	case errors.Is(err, sentinel.ErrNotFound):
		// No remote record; fall through to the cache.

	default:
		e.logger.Warn("consent query failed, falling back to local cache", "error", err.Error())
	}

	var cached domain.ConsentRecord
	if err := cache.GetJSON(ctx, e.store, key, &cached); err != nil {
		return
	}
	if cached.IsExpired(e.now(), duration) {
		e.logger.Info("cached consent record expired, re-prompting")
		e.dropCachedConsent(ctx, key)
		return
	}
	e.consent = &cached
}

func (e *Engine) dropCachedConsent(ctx context.Context, key string) {
	if err := e.store.Delete(ctx, key); err != nil {
		e.logger.Warn("stale consent delete failed", "error", err.Error())
	}
}

func adoptionReason(merged bool) string {
	if merged {
		return "identity_merge"
	}
	return "existing_record"
}
