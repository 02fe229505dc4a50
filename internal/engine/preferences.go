package engine

import (
	"context"

	"consentgate/internal/domain"
	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
)

// selection tracks per-activity toggles during preference capture. Only
// explicitly toggled activities enter the submitted sets; confirming with no
// toggle at all is a user input error.
type selection struct {
	order    []id.ID
	touched  map[id.ID]bool
	accepted map[id.ID]bool
	locked   map[id.ID]bool
}

// Toggle is one row of the preference surface.
type Toggle struct {
	ID       id.ID
	Name     string
	Accepted bool
	// Locked marks an activity forced to accepted by a mandatory purpose; its
	// control is disabled.
	Locked bool
}

// newSelectionLocked seeds toggles for the presented activities: mandatory
// activities are forced accepted and locked, the rest default from the
// consent on record.
func (e *Engine) newSelectionLocked(activities domain.ActivitySet) *selection {
	mandatory := e.snap.MandatoryPurposes()
	sel := &selection{
		touched:  make(map[id.ID]bool, len(activities)),
		accepted: make(map[id.ID]bool, len(activities)),
		locked:   make(map[id.ID]bool),
	}
	for _, a := range activities {
		sel.order = append(sel.order, a.ID)
		if activityMandatory(a, mandatory) {
			sel.touched[a.ID] = true
			sel.accepted[a.ID] = true
			sel.locked[a.ID] = true
			continue
		}
		if e.consent == nil {
			continue
		}
		if e.consent.AcceptsActivity(a.ID) {
			sel.touched[a.ID] = true
			sel.accepted[a.ID] = true
		} else if e.consent.Decided() {
			for _, r := range e.consent.Rejected {
				if r == a.ID {
					sel.touched[a.ID] = true
					break
				}
			}
		}
	}
	return sel
}

func activityMandatory(a domain.Activity, mandatory map[id.ID]bool) bool {
	if a.HasMandatoryPurpose() {
		return true
	}
	for _, p := range a.Purposes {
		if mandatory[p.ID] {
			return true
		}
	}
	return false
}

// Toggles returns the preference rows in presentation order.
func (e *Engine) Toggles() ([]Toggle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireState(StatePresenting); err != nil {
		return nil, err
	}
	out := make([]Toggle, 0, len(e.sel.order))
	for _, aid := range e.sel.order {
		t := Toggle{ID: aid, Accepted: e.sel.accepted[aid], Locked: e.sel.locked[aid]}
		if a, ok := e.presentation.Activities.ByID(aid); ok {
			t.Name = a.Name
		}
		out = append(out, t)
	}
	return out, nil
}

// SetActivity toggles one activity. A locked (mandatory) activity cannot be
// rejected; an id outside the presented set is invalid input.
func (e *Engine) SetActivity(activityID id.ID, accepted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireState(StatePresenting); err != nil {
		return err
	}
	found := false
	for _, aid := range e.sel.order {
		if aid == activityID {
			found = true
			break
		}
	}
	if !found {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown activity %q", activityID)
	}
	if e.sel.locked[activityID] && !accepted {
		return dErrors.New(dErrors.CodeNotPermitted, "activity contains a mandatory purpose and cannot be rejected")
	}
	e.sel.touched[activityID] = true
	e.sel.accepted[activityID] = accepted
	return nil
}

// Confirm finalizes preference capture: the status is computed from the
// toggle sets, an empty selection is rejected locally as user input error,
// and a valid selection is persisted then submitted.
func (e *Engine) Confirm(ctx context.Context) error {
	e.mu.Lock()
	if err := e.requireState(StatePresenting); err != nil {
		e.mu.Unlock()
		return err
	}

	var accepted, rejected []id.ID
	for _, aid := range e.sel.order {
		if !e.sel.touched[aid] {
			continue
		}
		if e.sel.accepted[aid] {
			accepted = append(accepted, aid)
		} else {
			rejected = append(rejected, aid)
		}
	}
	status, ok := domain.ComputeStatus(accepted, rejected)
	if !ok {
		e.mu.Unlock()
		return dErrors.New(dErrors.CodeMissingConsent, "select at least one activity before confirming")
	}

	record := e.buildRecordLocked(status, accepted, rejected)
	e.mu.Unlock()

	return e.submit(ctx, record)
}

// buildRecordLocked assembles the consent record for the current selection,
// carrying every purpose of each decided activity into the matching
// per-activity purpose set.
func (e *Engine) buildRecordLocked(status domain.ConsentStatus, accepted, rejected []id.ID) domain.ConsentRecord {
	record := domain.ConsentRecord{
		VisitorID:     e.identity.Current(),
		WidgetID:      e.cfg.WidgetID,
		Status:        status,
		Accepted:      accepted,
		Rejected:      rejected,
		CreatedAt:     e.now(),
		VerifiedEmail: e.verifiedEmail,
	}
	record.ExpiresAt = record.CreatedAt.Add(e.snap.Features.ConsentDuration)

	record.AcceptedPurposes = e.purposesFor(accepted)
	record.RejectedPurposes = e.purposesFor(rejected)
	return record
}

func (e *Engine) purposesFor(activityIDs []id.ID) map[id.ID][]id.ID {
	if len(activityIDs) == 0 {
		return nil
	}
	out := make(map[id.ID][]id.ID, len(activityIDs))
	for _, aid := range activityIDs {
		a, ok := e.presentation.Activities.ByID(aid)
		if !ok {
			continue
		}
		for _, p := range a.Purposes {
			out[aid] = append(out[aid], p.ID)
		}
	}
	return out
}
