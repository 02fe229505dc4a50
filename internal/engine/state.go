package engine

import (
	"fmt"

	"consentgate/pkg/platform/sentinel"
)

// State is the engine's position in the consent flow. Age and identity states
// are skipped when the corresponding feature is disabled in configuration.
type State string

const (
	StateNew              State = "NEW"
	StateAgePending       State = "AGE_PENDING"
	StateAgeVerified      State = "AGE_VERIFIED"
	StateAgeBlocked       State = "AGE_BLOCKED"
	StateIdentityPending  State = "IDENTITY_PENDING"
	StateIdentityVerified State = "IDENTITY_VERIFIED"
	StatePresenting       State = "PRESENTING"
	StateSubmitting       State = "SUBMITTING"
	StateComplete         State = "COMPLETE"
	StateError            State = "ERROR"
)

// Terminal states accept no further transitions except StateComplete, which
// reopens for preference management and revocation.
func (s State) Terminal() bool {
	return s == StateAgeBlocked || s == StateError
}

// allowed enumerates every legal transition. An authoritative blocked_minor
// outcome can arrive after the engine moved past age verification on a cached
// flag, so AGE_BLOCKED is reachable from every pre-submission state.
var allowed = map[State][]State{
	StateNew:              {StateAgePending, StateIdentityPending, StatePresenting, StateComplete, StateError},
	StateAgePending:       {StateAgeVerified, StateAgeBlocked, StateError},
	StateAgeVerified:      {StateIdentityPending, StatePresenting, StateAgePending, StateAgeBlocked, StateError},
	StateIdentityPending:  {StateIdentityVerified, StateAgePending, StateAgeBlocked, StateError},
	StateIdentityVerified: {StatePresenting, StateAgePending, StateAgeBlocked, StateError},
	StatePresenting:       {StateSubmitting, StateAgePending, StateAgeBlocked, StateError},
	StateSubmitting:       {StateComplete, StatePresenting, StateError},
	StateComplete:         {StatePresenting, StateSubmitting, StateError},
}

// transition moves the engine to next, rejecting anything the table does not
// allow. Callers hold e.mu.
func (e *Engine) transition(next State) error {
	if e.state == next {
		return nil
	}
	for _, candidate := range allowed[e.state] {
		if candidate == next {
			transitionsTotal.WithLabelValues(string(e.state), string(next)).Inc()
			e.logger.Debug("state transition", "from", string(e.state), "to", string(next))
			e.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", sentinel.ErrInvalidState, e.state, next)
}

// requireState rejects an operation attempted outside the states it is legal
// in. Misuse is caught locally and never reaches the network.
func (e *Engine) requireState(states ...State) error {
	for _, s := range states {
		if e.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: operation not permitted in state %s", sentinel.ErrInvalidState, e.state)
}
