// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"context"
	"sync"

	"consentgate/internal/authority/models"
	"consentgate/pkg/platform/sentinel"
)

// Store keeps everything in maps behind one mutex. Good enough for a single
// process; the postgres store is the production path.
type Store struct {
	mu         sync.RWMutex
	configs    map[string]models.WidgetConfig
	consents   map[string]models.StoredConsent
	otps       map[string]models.OTPChallenge
	identities map[string]models.DurableIdentity
	sessions   map[string]models.AgeSession
}

func New() *Store {
	return &Store{
		configs:    make(map[string]models.WidgetConfig),
		consents:   make(map[string]models.StoredConsent),
		otps:       make(map[string]models.OTPChallenge),
		identities: make(map[string]models.DurableIdentity),
		sessions:   make(map[string]models.AgeSession),
	}
}

func consentKey(widgetID, visitorID string) string {
	return widgetID + "\x00" + visitorID
}

func otpKey(widgetID, visitorID, email string) string {
	return widgetID + "\x00" + visitorID + "\x00" + email
}

func (s *Store) GetConfig(_ context.Context, widgetID string) (models.WidgetConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[widgetID]
	if !ok {
		return models.WidgetConfig{}, sentinel.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) PutConfig(_ context.Context, cfg models.WidgetConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.WidgetID] = cfg
	return nil
}

func (s *Store) DeleteConfig(_ context.Context, widgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, widgetID)
	return nil
}

func (s *Store) SaveConsent(_ context.Context, c models.StoredConsent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consentKey(c.WidgetID, c.VisitorID)] = c
	return nil
}

func (s *Store) GetConsent(_ context.Context, widgetID, visitorID string) (models.StoredConsent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consents[consentKey(widgetID, visitorID)]
	if !ok {
		return models.StoredConsent{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *Store) SaveOTP(_ context.Context, c models.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[otpKey(c.WidgetID, c.VisitorID, c.Email)] = c
	return nil
}

func (s *Store) GetOTP(_ context.Context, widgetID, visitorID, email string) (models.OTPChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.otps[otpKey(widgetID, visitorID, email)]
	if !ok {
		return models.OTPChallenge{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *Store) MarkOTPUsed(_ context.Context, widgetID, visitorID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := otpKey(widgetID, visitorID, email)
	c, ok := s.otps[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Used = true
	s.otps[key] = c
	return nil
}

func (s *Store) SaveIdentity(_ context.Context, ident models.DurableIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[ident.Email] = ident
	return nil
}

func (s *Store) GetIdentityByEmail(_ context.Context, email string) (models.DurableIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[email]
	if !ok {
		return models.DurableIdentity{}, sentinel.ErrNotFound
	}
	return ident, nil
}

func (s *Store) SaveAgeSession(_ context.Context, sess models.AgeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetAgeSession(_ context.Context, sessionID string) (models.AgeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.AgeSession{}, sentinel.ErrNotFound
	}
	return sess, nil
}
