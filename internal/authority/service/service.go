// Package service implements the consent authority's business logic. It sits
// between the HTTP handlers and the store.
package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"consentgate/internal/authority/models"
	"consentgate/internal/authority/store"
	"consentgate/internal/authority/token"
	"consentgate/internal/domain"
	"consentgate/internal/platform/metrics"
	"consentgate/internal/snapshot"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/email"
	audit "consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

const otpCodeLength = 6

// auditEmitter is the slice of the audit publisher the service uses.
type auditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the authority's application core.
type Service struct {
	store           store.Store
	tokens          *token.Service
	logger          *slog.Logger
	metrics         *metrics.Metrics
	audit           auditEmitter
	otpTTL          time.Duration
	ageTTL          time.Duration
	verifierBaseURL string
	revealCodes     bool
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRevealCodes logs issued OTP codes. Development only, there is no mail
// delivery in this server.
func WithRevealCodes() Option {
	return func(s *Service) { s.revealCodes = true }
}

// WithVerifierBaseURL sets the external age verifier the redirect URLs
// point at.
func WithVerifierBaseURL(base string) Option {
	return func(s *Service) { s.verifierBaseURL = strings.TrimRight(base, "/") }
}

// WithAudit attaches an audit publisher; recorded consents are emitted as
// compliance events.
func WithAudit(emitter auditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

func New(st store.Store, tokens *token.Service, logger *slog.Logger, m *metrics.Metrics, otpTTL, ageTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		store:           st,
		tokens:          tokens,
		logger:          logger,
		metrics:         m,
		otpTTL:          otpTTL,
		ageTTL:          ageTTL,
		verifierBaseURL: "https://age-verifier.invalid",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetWidgetConfig returns the raw configuration payload for a widget.
func (s *Service) GetWidgetConfig(ctx context.Context, widgetID string) ([]byte, error) {
	cfg, err := s.store.GetConfig(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	return cfg.Payload, nil
}

// PutWidgetConfig validates and stores a configuration payload. The payload
// must normalize cleanly so clients never fetch a broken document.
func (s *Service) PutWidgetConfig(ctx context.Context, widgetID string, payload []byte) error {
	var wire snapshot.WireConfig
	if err := json.Unmarshal(payload, &wire); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "configuration is not valid JSON: %v", err)
	}
	if _, err := snapshot.Normalize(wire, s.logger, s.now()); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "configuration does not normalize: %v", err)
	}
	return s.store.PutConfig(ctx, models.WidgetConfig{
		WidgetID:  widgetID,
		Payload:   payload,
		UpdatedAt: s.now(),
	})
}

// DeleteWidgetConfig removes a widget's configuration. Clients polling it
// will observe 404 and stop.
func (s *Service) DeleteWidgetConfig(ctx context.Context, widgetID string) error {
	return s.store.DeleteConfig(ctx, widgetID)
}

// SubmitInput is a consent submission as received from a client.
type SubmitInput struct {
	WidgetID         string
	VisitorID        string
	Status           string
	Accepted         []string
	Rejected         []string
	AcceptedPurposes map[string][]string
	RejectedPurposes map[string][]string
	VerifiedEmail    string
	Metadata         map[string]string
}

// SubmitOutput acknowledges a recorded consent.
type SubmitOutput struct {
	ExpiresAt time.Time
	// DurableIdentity is set when the submission was re-homed onto the
	// durable identity bound to the verified email.
	DurableIdentity string
}

// RecordConsent validates and persists a consent decision. Expiry comes from
// the widget configuration's consent duration. When the submission carries a
// verified email with an existing durable identity, the record is stored
// under that identity so other devices find it.
func (s *Service) RecordConsent(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	if in.WidgetID == "" || in.VisitorID == "" {
		return SubmitOutput{}, dErrors.New(dErrors.CodeInvalidInput, "widgetId and visitorId are required")
	}
	switch domain.ConsentStatus(in.Status) {
	case domain.StatusAccepted, domain.StatusRejected, domain.StatusPartial, domain.StatusRevoked:
	default:
		return SubmitOutput{}, dErrors.Newf(dErrors.CodeInvalidConsent, "unknown consent status %q", in.Status)
	}

	duration, err := s.consentDuration(ctx, in.WidgetID)
	if err != nil {
		return SubmitOutput{}, err
	}

	visitorID := in.VisitorID
	var durable string
	if in.VerifiedEmail != "" {
		ident, err := s.store.GetIdentityByEmail(ctx, in.VerifiedEmail)
		switch {
		case err == nil:
			if ident.VisitorID != visitorID {
				durable = ident.VisitorID
				visitorID = ident.VisitorID
			}
		case errors.Is(err, sentinel.ErrNotFound):
			// Verified email without a minted identity, keep the session id.
		default:
			return SubmitOutput{}, err
		}
	}

	now := s.now()
	record := models.StoredConsent{
		WidgetID:         in.WidgetID,
		VisitorID:        visitorID,
		Status:           in.Status,
		Accepted:         in.Accepted,
		Rejected:         in.Rejected,
		AcceptedPurposes: in.AcceptedPurposes,
		RejectedPurposes: in.RejectedPurposes,
		VerifiedEmail:    in.VerifiedEmail,
		Metadata:         in.Metadata,
		CreatedAt:        now,
		ExpiresAt:        now.Add(duration),
	}
	if err := s.store.SaveConsent(ctx, record); err != nil {
		return SubmitOutput{}, err
	}

	s.metrics.ConsentsRecorded.WithLabelValues(in.Status).Inc()
	s.logger.Info("consent recorded",
		slog.String("widget_id", in.WidgetID),
		slog.String("visitor_id", visitorID),
		slog.String("status", in.Status))
	if s.audit != nil {
		if err := s.audit.Emit(ctx, audit.Event{
			Category:  audit.CategoryCompliance,
			Timestamp: now,
			WidgetID:  in.WidgetID,
			VisitorID: visitorID,
			Action:    string(audit.EventConsentRecorded),
			Decision:  in.Status,
		}); err != nil {
			s.logger.Warn("audit emit failed", slog.Any("error", err))
		}
	}
	return SubmitOutput{ExpiresAt: record.ExpiresAt, DurableIdentity: durable}, nil
}

// LookupOutput is a consent query answer.
type LookupOutput struct {
	Record models.StoredConsent
	// Merged reports the record was reached through a durable identity, the
	// cross-device case.
	Merged          bool
	DurableIdentity string
}

// LookupConsent returns the stored record for (widget, visitor). Expiry is
// the caller's concern, the record is returned as stored.
func (s *Service) LookupConsent(ctx context.Context, widgetID, visitorID string) (LookupOutput, error) {
	record, err := s.store.GetConsent(ctx, widgetID, visitorID)
	if err != nil {
		return LookupOutput{}, err
	}

	out := LookupOutput{Record: record}
	if record.VerifiedEmail != "" {
		ident, err := s.store.GetIdentityByEmail(ctx, record.VerifiedEmail)
		if err == nil && ident.VisitorID == visitorID {
			out.Merged = true
			out.DurableIdentity = ident.VisitorID
		}
	}
	return out, nil
}

// SendOTP issues a one-time code for email verification. Only the bcrypt
// hash is stored; a previous unconsumed challenge for the same key is
// replaced.
func (s *Service) SendOTP(ctx context.Context, widgetID, visitorID, address string) error {
	address = email.Normalize(address)
	if !email.Valid(address) {
		s.metrics.OTPChallenges.WithLabelValues("send", "rejected").Inc()
		return dErrors.New(dErrors.CodeInvalidInput, "email address is not valid")
	}

	code, err := generateCode(otpCodeLength)
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp code: %w", err)
	}

	now := s.now()
	challenge := models.OTPChallenge{
		WidgetID:  widgetID,
		VisitorID: visitorID,
		Email:     address,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpTTL),
	}
	if err := s.store.SaveOTP(ctx, challenge); err != nil {
		return err
	}

	s.metrics.OTPChallenges.WithLabelValues("send", "ok").Inc()
	if s.revealCodes {
		s.logger.Info("otp code issued",
			slog.String("email", address),
			slog.String("code", code))
	} else {
		s.logger.Info("otp code issued", slog.String("email", address))
	}
	return nil
}

// VerifyOutput is the answer to an OTP verification attempt.
type VerifyOutput struct {
	Verified        bool
	DurableIdentity string
}

// VerifyOTP checks a submitted code. On success the challenge is consumed
// and the email's durable identity is returned, minted first if the email
// was never verified before.
func (s *Service) VerifyOTP(ctx context.Context, widgetID, visitorID, address, code string) (VerifyOutput, error) {
	address = email.Normalize(address)
	challenge, err := s.store.GetOTP(ctx, widgetID, visitorID, address)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.OTPChallenges.WithLabelValues("verify", "no_challenge").Inc()
		return VerifyOutput{}, nil
	}
	if err != nil {
		return VerifyOutput{}, err
	}

	now := s.now()
	switch {
	case challenge.Used:
		s.metrics.OTPChallenges.WithLabelValues("verify", "already_used").Inc()
		return VerifyOutput{}, nil
	case now.After(challenge.ExpiresAt):
		s.metrics.OTPChallenges.WithLabelValues("verify", "expired").Inc()
		return VerifyOutput{}, nil
	}
	if bcrypt.CompareHashAndPassword(challenge.CodeHash, []byte(code)) != nil {
		s.metrics.OTPChallenges.WithLabelValues("verify", "wrong_code").Inc()
		return VerifyOutput{}, nil
	}

	if err := s.store.MarkOTPUsed(ctx, widgetID, visitorID, address); err != nil {
		return VerifyOutput{}, err
	}

	ident, err := s.durableIdentityFor(ctx, address)
	if err != nil {
		return VerifyOutput{}, err
	}

	s.metrics.OTPChallenges.WithLabelValues("verify", "ok").Inc()
	return VerifyOutput{Verified: true, DurableIdentity: ident.VisitorID}, nil
}

// durableIdentityFor returns the identity bound to an address, minting one
// on first verification. The mint is idempotent at the store: concurrent
// verifications of the same address converge on one identity.
func (s *Service) durableIdentityFor(ctx context.Context, address string) (models.DurableIdentity, error) {
	ident, err := s.store.GetIdentityByEmail(ctx, address)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.DurableIdentity{}, err
	}

	visitorID := "dv-" + uuid.NewString()
	proof, err := s.tokens.MintIdentityProof(address, visitorID)
	if err != nil {
		return models.DurableIdentity{}, fmt.Errorf("mint identity proof: %w", err)
	}
	ident = models.DurableIdentity{
		Email:     address,
		VisitorID: visitorID,
		Token:     proof,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveIdentity(ctx, ident); err != nil {
		return models.DurableIdentity{}, err
	}
	// Re-read so a concurrent first verification wins deterministically.
	return s.store.GetIdentityByEmail(ctx, address)
}

// AgeSessionOutput is a freshly created age verification session.
type AgeSessionOutput struct {
	ID          string
	RedirectURL string
}

// CreateAgeSession opens a session at the external verifier and returns the
// redirect URL the client sends the visitor to.
func (s *Service) CreateAgeSession(ctx context.Context, widgetID, visitorID, returnURL string) (AgeSessionOutput, error) {
	if widgetID == "" || visitorID == "" {
		return AgeSessionOutput{}, dErrors.New(dErrors.CodeInvalidInput, "widgetId and visitorId are required")
	}

	now := s.now()
	sess := models.AgeSession{
		ID:        uuid.NewString(),
		WidgetID:  widgetID,
		VisitorID: visitorID,
		Status:    string(domain.AgeSessionPending),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ageTTL),
	}
	if err := s.store.SaveAgeSession(ctx, sess); err != nil {
		return AgeSessionOutput{}, err
	}

	s.metrics.AgeSessionsCreated.Inc()
	redirect := fmt.Sprintf("%s/verify?session=%s&return=%s",
		s.verifierBaseURL, url.QueryEscape(sess.ID), url.QueryEscape(returnURL))
	return AgeSessionOutput{ID: sess.ID, RedirectURL: redirect}, nil
}

// ResolveAgeSession records the verifier's outcome for a session. This is
// the callback surface the external verifier posts to.
func (s *Service) ResolveAgeSession(ctx context.Context, sessionID string, outcome domain.AgeOutcome) error {
	sess, err := s.store.GetAgeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != string(domain.AgeSessionPending) {
		return sentinel.ErrInvalidState
	}

	switch outcome {
	case domain.OutcomeVerifiedAdult, domain.OutcomeLimitedAccess:
		sess.Status = string(domain.AgeSessionVerified)
	case domain.OutcomeBlockedMinor, domain.OutcomeExpired:
		sess.Status = string(domain.AgeSessionFailed)
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown age outcome %q", outcome)
	}
	sess.Outcome = string(outcome)
	return s.store.SaveAgeSession(ctx, sess)
}

// AgeSessionState is a queried session's status and outcome.
type AgeSessionState struct {
	Status  domain.AgeSessionStatus
	Outcome domain.AgeOutcome
}

// QueryAgeSession returns the current state of a session. A pending session
// past its expiry reports the expired outcome.
func (s *Service) QueryAgeSession(ctx context.Context, sessionID string) (AgeSessionState, error) {
	sess, err := s.store.GetAgeSession(ctx, sessionID)
	if err != nil {
		return AgeSessionState{}, err
	}

	state := AgeSessionState{
		Status:  domain.AgeSessionStatus(sess.Status),
		Outcome: domain.AgeOutcome(sess.Outcome),
	}
	if state.Status == domain.AgeSessionPending && s.now().After(sess.ExpiresAt) {
		state.Status = domain.AgeSessionFailed
		state.Outcome = domain.OutcomeExpired
	}
	return state, nil
}

// Translate returns a parallel list of translations. This server ships a
// pseudo-translator: sources come back tagged with the language so clients
// can exercise the localization path end to end.
func (s *Service) Translate(lang string, sources []string) []string {
	if lang == "" {
		return sources
	}
	out := make([]string, len(sources))
	for i, src := range sources {
		out[i] = "[" + lang + "] " + src
	}
	return out
}

func (s *Service) consentDuration(ctx context.Context, widgetID string) (time.Duration, error) {
	cfg, err := s.store.GetConfig(ctx, widgetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "widget %s has no configuration", widgetID)
	}
	if err != nil {
		return 0, err
	}

	var wire snapshot.WireConfig
	if err := json.Unmarshal(cfg.Payload, &wire); err != nil {
		return snapshot.DefaultConsentDuration, nil
	}
	snap, err := snapshot.Normalize(wire, s.logger, s.now())
	if err != nil {
		return snapshot.DefaultConsentDuration, nil
	}
	return snap.Features.ConsentDuration, nil
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
