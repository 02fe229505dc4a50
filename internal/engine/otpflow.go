package engine

import (
	"context"
	"fmt"
	"strings"

	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/email"
	"consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

// RequestIdentityCode asks the authority to send a one-time code to the
// visitor's email address.
func (e *Engine) RequestIdentityCode(ctx context.Context, address string) error {
	e.mu.Lock()
	if err := e.requireState(StateIdentityPending); err != nil {
		e.mu.Unlock()
		return err
	}
	widget := e.cfg.WidgetID
	visitor := e.identity.Current()
	e.mu.Unlock()

	address = email.Normalize(address)
	if !email.Valid(address) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}
	return e.authority.SendOTP(ctx, widget, visitor, address)
}

// VerifyIdentityCode verifies the submitted code. On success the engine
// advances to preference capture; when the authority returns a durable
// identity distinct from the current one, it replaces the ephemeral identity
// for all subsequent storage and submission. An in-flight guard rejects a
// duplicate attempt from repeated user action.
func (e *Engine) VerifyIdentityCode(ctx context.Context, address, code string) error {
	address = email.Normalize(address)

	e.mu.Lock()
	if err := e.requireState(StateIdentityPending); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.otpInFlight {
		e.mu.Unlock()
		return fmt.Errorf("%w: verification already in flight", sentinel.ErrConflict)
	}
	e.otpInFlight = true
	widget := e.cfg.WidgetID
	visitor := e.identity.Current()
	e.mu.Unlock()

	result, err := e.authority.VerifyOTP(ctx, widget, visitor, address, strings.TrimSpace(code))

	e.mu.Lock()
	e.otpInFlight = false
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if !result.Verified {
		return dErrors.New(dErrors.CodeInvalidInput, "verification code not accepted")
	}

	if result.DurableIdentity != "" {
		replaced, serr := e.identity.Stabilize(ctx, result.DurableIdentity)
		if serr != nil {
			e.logger.Warn("durable identity persist failed", "error", serr.Error())
		}
		if replaced {
			e.emit(ctx, audit.Event{
				Category:  audit.CategoryCompliance,
				Timestamp: e.now(),
				WidgetID:  widget.String(),
				VisitorID: e.identity.Current().String(),
				Action:    string(audit.EventIdentityStabilized),
			})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.verifiedEmail = address
	if err := e.transition(StateIdentityVerified); err != nil {
		return err
	}
	return e.transition(StatePresenting)
}
