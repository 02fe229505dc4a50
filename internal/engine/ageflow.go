package engine

import (
	"context"
	"fmt"

	"consentgate/internal/cache"
	"consentgate/internal/domain"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

// selfAttestedAdultAge is the threshold for the legacy birth-year flow.
const selfAttestedAdultAge = 16

// BeginAgeVerification starts the server-verified flow: a session is created
// at the authority, persisted locally so a reload mid-flow resumes, and the
// external verifier URL is returned for the redirect.
func (e *Engine) BeginAgeVerification(ctx context.Context) (string, error) {
	e.mu.Lock()
	if err := e.requireState(StateAgePending); err != nil {
		e.mu.Unlock()
		return "", err
	}
	if e.snap.Features.AgeVerification != domain.AgeModeServer {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: server age verification not enabled", sentinel.ErrInvalidState)
	}
	widget := e.cfg.WidgetID
	visitor := e.identity.Current()
	returnURL := e.cfg.ReturnURL
	e.mu.Unlock()

	session, err := e.authority.CreateAgeSession(ctx, widget, visitor, returnURL)
	if err != nil {
		return "", err
	}

	pending := domain.AgeVerificationSession{
		ID:          session.ID,
		Status:      domain.AgeSessionPending,
		CreatedAt:   e.now(),
		RedirectURL: session.RedirectURL,
	}
	key := cache.Key(widget.String(), ageSessionKey)
	if err := cache.PutJSON(ctx, e.store, key, pending, ageSessionTTL); err != nil {
		e.logger.Warn("pending age session persist failed", "error", err.Error())
	}
	return session.RedirectURL, nil
}

// ResumeAgeVerification resolves a session id (from the return navigation, or
// the locally saved pending session when empty) and applies its authoritative
// outcome. The outcome always overrides the cached verified flag: a
// blocked_minor answer blocks even a visitor the flag had waved through.
func (e *Engine) ResumeAgeVerification(ctx context.Context, sessionID string) error {
	key := cache.Key(e.cfg.WidgetID.String(), ageSessionKey)
	if sessionID == "" {
		var pending domain.AgeVerificationSession
		if err := cache.GetJSON(ctx, e.store, key, &pending); err != nil {
			return fmt.Errorf("no pending age verification session: %w", sentinel.ErrNotFound)
		}
		sessionID = pending.ID
	}

	state, err := e.authority.QueryAgeSession(ctx, sessionID)
	if err != nil {
		return err
	}

	// Session resolved one way or the other; the pending record is spent.
	if err := e.store.Delete(ctx, key); err != nil {
		e.logger.Warn("pending age session delete failed", "error", err.Error())
	}

	return e.applyAgeOutcome(ctx, state.Outcome)
}

// AttestBirthYear is the legacy self-attested flow, consulted only when the
// server-verified flow is disabled.
func (e *Engine) AttestBirthYear(ctx context.Context, year int) error {
	e.mu.Lock()
	if err := e.requireState(StateAgePending); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.snap.Features.AgeVerification != domain.AgeModeSelfAttested {
		e.mu.Unlock()
		return fmt.Errorf("%w: self-attested age verification not enabled", sentinel.ErrInvalidState)
	}
	currentYear := e.now().Year()
	e.mu.Unlock()

	if year <= 0 || year > currentYear {
		return dErrors.New(dErrors.CodeInvalidInput, "birth year out of range")
	}
	outcome := domain.OutcomeVerifiedAdult
	if currentYear-year < selfAttestedAdultAge {
		outcome = domain.OutcomeBlockedMinor
	}
	return e.applyAgeOutcome(ctx, outcome)
}

// applyAgeOutcome moves the engine per the authoritative outcome and keeps
// the cached flag consistent with it.
func (e *Engine) applyAgeOutcome(ctx context.Context, outcome domain.AgeOutcome) error {
	e.mu.Lock()
	widget := e.cfg.WidgetID
	visitor := e.identity.Current()

	switch {
	case outcome.PermitsConsent():
		e.ageVerified = true
		if err := e.transition(StateAgeVerified); err != nil {
			e.mu.Unlock()
			return err
		}
		if err := e.enterIdentityOrPresentLocked(); err != nil {
			e.mu.Unlock()
			return err
		}
		ttl := e.snap.Features.ConsentDuration
		e.mu.Unlock()

		flagKey := cache.Key(widget.String(), ageVerifiedKey)
		if err := cache.PutJSON(ctx, e.store, flagKey, true, ttl); err != nil {
			e.logger.Warn("age verified flag persist failed", "error", err.Error())
		}
		e.emit(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: e.now(),
			WidgetID:  widget.String(),
			VisitorID: visitor.String(),
			Action:    string(audit.EventAgeOutcomeApplied),
			Decision:  string(outcome),
		})
		return nil

	case outcome == domain.OutcomeBlockedMinor:
		e.ageVerified = false
		e.visible = false
		if err := e.transition(StateAgeBlocked); err != nil {
			e.mu.Unlock()
			return err
		}
		e.mu.Unlock()

		// The cached flag must not wave this visitor through on reload.
		flagKey := cache.Key(widget.String(), ageVerifiedKey)
		if err := e.store.Delete(ctx, flagKey); err != nil {
			e.logger.Warn("age verified flag delete failed", "error", err.Error())
		}
		e.emit(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: e.now(),
			WidgetID:  widget.String(),
			VisitorID: visitor.String(),
			Action:    string(audit.EventVerificationBlocked),
			Decision:  string(outcome),
		})
		return nil

	default:
		// expired or unset: the visitor must verify again.
		e.ageVerified = false
		err := e.transition(StateAgePending)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("age verification required again: %w", sentinel.ErrExpired)
		}
		return fmt.Errorf("age verification session not usable: %w", sentinel.ErrExpired)
	}
}
