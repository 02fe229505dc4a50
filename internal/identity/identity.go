package identity

import (
	"context"
	"log/slog"
	"time"

	"consentgate/internal/cache"
	id "consentgate/pkg/domain"
)

const stateKey = "visitor-id"

// Manager owns the visitor identity for one widget instance: a device-local
// ephemeral UUID until identity verification succeeds, then the durable
// identity the authority issued. All storage and submission after
// stabilization uses the durable identity exclusively.
type Manager struct {
	store    cache.Store
	widgetID id.WidgetID
	ttl      time.Duration
	logger   *slog.Logger

	current id.VisitorID
}

// New builds a manager; call Load before Current.
func New(store cache.Store, widgetID id.WidgetID, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, widgetID: widgetID, ttl: ttl, logger: logger}
}

// Load restores the persisted identity or generates a fresh ephemeral one.
// A tampered or malformed persisted value is replaced, never trusted.
func (m *Manager) Load(ctx context.Context) error {
	key := cache.Key(m.widgetID.String(), stateKey)

	var stored string
	if err := cache.GetJSON(ctx, m.store, key, &stored); err == nil {
		if visitor, err := id.ParseVisitorID(stored); err == nil {
			m.current = visitor
			return nil
		}
		m.logger.Warn("persisted visitor id failed validation, regenerating")
	}

	m.current = id.NewEphemeralVisitorID()
	return cache.PutJSON(ctx, m.store, key, m.current.String(), m.ttl)
}

// Current returns the identity in effect.
func (m *Manager) Current() id.VisitorID {
	return m.current
}

// Stabilize adopts a durable identity issued by the authority. The durable
// identity replaces the ephemeral one for all subsequent storage and
// submission; exactly one replacement happens per successful verification
// (the engine calls this once per verify). An invalid or identical value is
// a no-op.
func (m *Manager) Stabilize(ctx context.Context, durable string) (bool, error) {
	if durable == "" {
		return false, nil
	}
	visitor, err := id.ParseVisitorID(durable)
	if err != nil {
		m.logger.Warn("authority returned invalid durable identity, keeping current",
			"error", err.Error())
		return false, nil
	}
	if visitor == m.current {
		return false, nil
	}

	m.current = visitor
	key := cache.Key(m.widgetID.String(), stateKey)
	if err := cache.PutJSON(ctx, m.store, key, m.current.String(), m.ttl); err != nil {
		return true, err
	}
	return true, nil
}
