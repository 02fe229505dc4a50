package domain

import "time"

// AgeSessionStatus tracks the lifecycle of a server-verified age check.
type AgeSessionStatus string

const (
	AgeSessionPending  AgeSessionStatus = "pending"
	AgeSessionVerified AgeSessionStatus = "verified"
	AgeSessionFailed   AgeSessionStatus = "failed"
)

// AgeOutcome is the authoritative server-determined result of an
// age-verification session. When present it overrides any locally cached
// boolean flag; the flag only exists to avoid redundant prompts.
type AgeOutcome string

const (
	OutcomeUnset         AgeOutcome = ""
	OutcomeVerifiedAdult AgeOutcome = "verified_adult"
	OutcomeBlockedMinor  AgeOutcome = "blocked_minor"
	OutcomeLimitedAccess AgeOutcome = "limited_access"
	OutcomeExpired       AgeOutcome = "expired"
)

// PermitsConsent reports whether the outcome allows proceeding to identity
// verification and preference capture.
func (o AgeOutcome) PermitsConsent() bool {
	return o == OutcomeVerifiedAdult || o == OutcomeLimitedAccess
}

// RequiresReverification reports whether the visitor must run the
// verification flow again before anything else can happen.
func (o AgeOutcome) RequiresReverification() bool {
	return o == OutcomeUnset || o == OutcomeExpired
}

// AgeVerificationSession is the pending-session record persisted locally so a
// page reload mid-flow (returning from the external verifier) resumes
// deterministically.
type AgeVerificationSession struct {
	ID        string
	Status    AgeSessionStatus
	Outcome   AgeOutcome
	CreatedAt time.Time
	// RedirectURL is the external verifier the visitor was sent to.
	RedirectURL string
}

// AgeVerificationMode selects which of the two mechanisms is active. At most
// one is consulted per configuration; the server-verified flow always takes
// priority when enabled.
type AgeVerificationMode string

const (
	AgeModeDisabled AgeVerificationMode = "disabled"
	// AgeModeServer is the server-verified flow with authoritative outcomes.
	AgeModeServer AgeVerificationMode = "server"
	// AgeModeSelfAttested is the legacy birth-year prompt, consulted only
	// when the server flow is disabled.
	AgeModeSelfAttested AgeVerificationMode = "self_attested"
)
