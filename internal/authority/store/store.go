// Package store defines the persistence contract of the consent authority.
// Implementations: memory (tests, development) and postgres.
package store

import (
	"context"

	"consentgate/internal/authority/models"
)

// Store is the full persistence surface. Implementations return
// sentinel.ErrNotFound for absent rows.
type Store interface {
	// Widget configuration.
	GetConfig(ctx context.Context, widgetID string) (models.WidgetConfig, error)
	PutConfig(ctx context.Context, cfg models.WidgetConfig) error
	DeleteConfig(ctx context.Context, widgetID string) error

	// Consent records, keyed by (widget, visitor). Save overwrites.
	SaveConsent(ctx context.Context, c models.StoredConsent) error
	GetConsent(ctx context.Context, widgetID, visitorID string) (models.StoredConsent, error)

	// OTP challenges, keyed by (widget, visitor, email). Save overwrites the
	// previous challenge for the same key.
	SaveOTP(ctx context.Context, c models.OTPChallenge) error
	GetOTP(ctx context.Context, widgetID, visitorID, email string) (models.OTPChallenge, error)
	MarkOTPUsed(ctx context.Context, widgetID, visitorID, email string) error

	// Durable identities, keyed by email.
	SaveIdentity(ctx context.Context, ident models.DurableIdentity) error
	GetIdentityByEmail(ctx context.Context, email string) (models.DurableIdentity, error)

	// Age sessions, keyed by session id.
	SaveAgeSession(ctx context.Context, s models.AgeSession) error
	GetAgeSession(ctx context.Context, sessionID string) (models.AgeSession, error)
}
