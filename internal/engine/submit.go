package engine

import (
	"context"
	"errors"
	"fmt"

	"consentgate/internal/cache"
	"consentgate/internal/domain"
	"consentgate/internal/remote"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

// ErrSubmitFailed is the generic user-facing submission failure. Internal
// detail stays in the logs.
var ErrSubmitFailed = errors.New("could not save your choices, please try again")

// submit runs the full submission path: in-flight guard, local persistence
// with the configured expiry, then the remote write. The cache write happens
// first so a crash between the two leaves the device with its decision.
func (e *Engine) submit(ctx context.Context, record domain.ConsentRecord) error {
	e.mu.Lock()
	if e.submitInFlight {
		e.mu.Unlock()
		return fmt.Errorf("%w: submission already in flight", sentinel.ErrConflict)
	}
	if err := e.transition(StateSubmitting); err != nil {
		e.mu.Unlock()
		return err
	}
	e.submitInFlight = true
	e.mu.Unlock()

	err := e.persistAndSubmit(ctx, record, audit.EventConsentSubmitted)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitInFlight = false
	if err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		e.logger.Error("consent submission failed", "error", err.Error())
		if terr := e.transition(StatePresenting); terr != nil {
			return terr
		}
		return ErrSubmitFailed
	}
	submissionsTotal.WithLabelValues("ok").Inc()
	e.visible = false
	return e.transition(StateComplete)
}

// persistAndSubmit writes the record to the local cache, submits it to
// the authority, and installs it as the consent on record. The engine mutex
// is NOT held across the network call; callers must not hold it either.
func (e *Engine) persistAndSubmit(ctx context.Context, record domain.ConsentRecord, action audit.Action) error {
	if err := e.persistConsent(ctx, record); err != nil {
		return err
	}

	req := buildSubmitRequest(record)
	result, err := e.authority.SubmitConsent(ctx, req)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !result.ExpiresAt.IsZero() {
		record.ExpiresAt = result.ExpiresAt
	}
	e.consent = &record
	categories := e.consentedCategoriesLocked()
	g := e.gate
	visitor := e.identity.Current()
	e.mu.Unlock()

	if result.DurableIdentity != "" {
		if replaced, serr := e.identity.Stabilize(ctx, result.DurableIdentity); serr != nil {
			e.logger.Warn("durable identity persist failed", "error", serr.Error())
		} else if replaced {
			visitor = e.identity.Current()
			record.VisitorID = visitor
		}
	}

	// Refresh the cache with the authoritative expiry under the identity now
	// in effect.
	if err := e.persistConsent(ctx, record); err != nil {
		e.logger.Warn("consent cache refresh failed", "error", err.Error())
	}

	if record.Status != domain.StatusRevoked {
		g.SetConsented(ctx, categories)
	}

	e.emit(ctx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: record.CreatedAt,
		WidgetID:  record.WidgetID.String(),
		VisitorID: visitor.String(),
		Action:    string(action),
		Decision:  string(record.Status),
	})
	return nil
}

// persistConsent writes the record under the widget-scoped consent key with
// the configured duration as TTL.
func (e *Engine) persistConsent(ctx context.Context, record domain.ConsentRecord) error {
	key := cache.Key(e.cfg.WidgetID.String(), consentKey)
	return cache.PutJSON(ctx, e.store, key, record, e.snap.Features.ConsentDuration)
}

// buildSubmitRequest converts the record into the wire payload, re-validating
// every referenced id and capping array sizes. Invalid ids are dropped, never
// rewritten.
func buildSubmitRequest(record domain.ConsentRecord) remote.SubmitRequest {
	req := remote.SubmitRequest{
		WidgetID:      record.WidgetID,
		VisitorID:     record.VisitorID,
		Status:        string(record.Status),
		Accepted:      validatedStrings(record.Accepted),
		Rejected:      validatedStrings(record.Rejected),
		VerifiedEmail: record.VerifiedEmail,
	}
	if len(record.AcceptedPurposes) > 0 {
		req.AcceptedPurposes = validatedPurposeMap(record.AcceptedPurposes)
	}
	if len(record.RejectedPurposes) > 0 {
		req.RejectedPurposes = validatedPurposeMap(record.RejectedPurposes)
	}
	return req
}

func validatedStrings(ids []id.ID) []string {
	raw := make([]string, 0, len(ids))
	for _, v := range ids {
		raw = append(raw, v.String())
	}
	valid, _ := id.FilterIDs(raw)
	out := make([]string, 0, len(valid))
	for _, v := range valid {
		out = append(out, v.String())
	}
	return out
}

func validatedPurposeMap(m map[id.ID][]id.ID) map[string][]string {
	out := make(map[string][]string, len(m))
	for aid, pids := range m {
		if !aid.IsValid() {
			continue
		}
		out[aid.String()] = validatedStrings(pids)
	}
	return out
}
