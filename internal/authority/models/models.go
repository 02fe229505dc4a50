package models

import "time"

// WidgetConfig is a stored configuration document, served verbatim to
// clients. Payload is the raw JSON as uploaded.
type WidgetConfig struct {
	WidgetID  string
	Payload   []byte
	UpdatedAt time.Time
}

// StoredConsent is the authority-side consent record.
type StoredConsent struct {
	WidgetID         string
	VisitorID        string
	Status           string
	Accepted         []string
	Rejected         []string
	AcceptedPurposes map[string][]string
	RejectedPurposes map[string][]string
	VerifiedEmail    string
	Metadata         map[string]string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired checks the record against now.
func (c StoredConsent) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// OTPChallenge is a pending email verification. Only the bcrypt hash of the
// code is stored.
type OTPChallenge struct {
	WidgetID  string
	VisitorID string
	Email     string
	CodeHash  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// DurableIdentity binds a verified email to the stable visitor identity the
// authority issues for it. The same email always resolves to the same
// identity, which is what enables cross-device merge.
type DurableIdentity struct {
	Email     string
	VisitorID string
	// Token is a signed proof of the binding, minted at verification time.
	Token     string
	CreatedAt time.Time
}

// AgeSession is an age verification session at the external verifier.
type AgeSession struct {
	ID        string
	WidgetID  string
	VisitorID string
	Status    string
	Outcome   string
	CreatedAt time.Time
	ExpiresAt time.Time
}
