// Package postgres persists authority state in PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"consentgate/internal/authority/models"
	"consentgate/pkg/platform/sentinel"
)

// Store is the PostgreSQL-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open connects and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without touching the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.ensureSchema(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS widget_configs (
	widget_id  TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS consents (
	widget_id         TEXT NOT NULL,
	visitor_id        TEXT NOT NULL,
	status            TEXT NOT NULL,
	accepted          JSONB NOT NULL,
	rejected          JSONB NOT NULL,
	accepted_purposes JSONB,
	rejected_purposes JSONB,
	verified_email    TEXT NOT NULL DEFAULT '',
	metadata          JSONB,
	created_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (widget_id, visitor_id)
);
CREATE INDEX IF NOT EXISTS consents_email_idx ON consents (verified_email) WHERE verified_email <> '';
CREATE TABLE IF NOT EXISTS otp_challenges (
	widget_id  TEXT NOT NULL,
	visitor_id TEXT NOT NULL,
	email      TEXT NOT NULL,
	code_hash  BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	used       BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (widget_id, visitor_id, email)
);
CREATE TABLE IF NOT EXISTS durable_identities (
	email      TEXT PRIMARY KEY,
	visitor_id TEXT NOT NULL,
	token      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS age_sessions (
	id         TEXT PRIMARY KEY,
	widget_id  TEXT NOT NULL,
	visitor_id TEXT NOT NULL,
	status     TEXT NOT NULL,
	outcome    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, widgetID string) (models.WidgetConfig, error) {
	var cfg models.WidgetConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT widget_id, payload, updated_at FROM widget_configs WHERE widget_id = $1`,
		widgetID,
	).Scan(&cfg.WidgetID, &cfg.Payload, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WidgetConfig{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.WidgetConfig{}, fmt.Errorf("get widget config: %w", err)
	}
	return cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg models.WidgetConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO widget_configs (widget_id, payload, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (widget_id) DO UPDATE SET payload = $2, updated_at = $3`,
		cfg.WidgetID, cfg.Payload, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put widget config: %w", err)
	}
	return nil
}

func (s *Store) DeleteConfig(ctx context.Context, widgetID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM widget_configs WHERE widget_id = $1`, widgetID,
	); err != nil {
		return fmt.Errorf("delete widget config: %w", err)
	}
	return nil
}

func (s *Store) SaveConsent(ctx context.Context, c models.StoredConsent) error {
	accepted, err := json.Marshal(c.Accepted)
	if err != nil {
		return fmt.Errorf("marshal accepted: %w", err)
	}
	rejected, err := json.Marshal(c.Rejected)
	if err != nil {
		return fmt.Errorf("marshal rejected: %w", err)
	}
	acceptedPurposes, err := json.Marshal(c.AcceptedPurposes)
	if err != nil {
		return fmt.Errorf("marshal accepted purposes: %w", err)
	}
	rejectedPurposes, err := json.Marshal(c.RejectedPurposes)
	if err != nil {
		return fmt.Errorf("marshal rejected purposes: %w", err)
	}
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consents (widget_id, visitor_id, status, accepted, rejected,
			accepted_purposes, rejected_purposes, verified_email, metadata, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (widget_id, visitor_id) DO UPDATE SET
			status = $3, accepted = $4, rejected = $5, accepted_purposes = $6,
			rejected_purposes = $7, verified_email = $8, metadata = $9,
			created_at = $10, expires_at = $11`,
		c.WidgetID, c.VisitorID, c.Status, accepted, rejected,
		acceptedPurposes, rejectedPurposes, c.VerifiedEmail, metadata, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *Store) GetConsent(ctx context.Context, widgetID, visitorID string) (models.StoredConsent, error) {
	var (
		c                models.StoredConsent
		accepted         []byte
		rejected         []byte
		acceptedPurposes []byte
		rejectedPurposes []byte
		metadata         []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT widget_id, visitor_id, status, accepted, rejected,
			accepted_purposes, rejected_purposes, verified_email, metadata, created_at, expires_at
		 FROM consents WHERE widget_id = $1 AND visitor_id = $2`,
		widgetID, visitorID,
	).Scan(&c.WidgetID, &c.VisitorID, &c.Status, &accepted, &rejected,
		&acceptedPurposes, &rejectedPurposes, &c.VerifiedEmail, &metadata, &c.CreatedAt, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredConsent{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.StoredConsent{}, fmt.Errorf("get consent: %w", err)
	}

	if err := unmarshalInto(accepted, &c.Accepted); err != nil {
		return models.StoredConsent{}, err
	}
	if err := unmarshalInto(rejected, &c.Rejected); err != nil {
		return models.StoredConsent{}, err
	}
	if err := unmarshalInto(acceptedPurposes, &c.AcceptedPurposes); err != nil {
		return models.StoredConsent{}, err
	}
	if err := unmarshalInto(rejectedPurposes, &c.RejectedPurposes); err != nil {
		return models.StoredConsent{}, err
	}
	if err := unmarshalInto(metadata, &c.Metadata); err != nil {
		return models.StoredConsent{}, err
	}
	return c, nil
}

func unmarshalInto(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal consent column: %w", err)
	}
	return nil
}

func (s *Store) SaveOTP(ctx context.Context, c models.OTPChallenge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (widget_id, visitor_id, email, code_hash, created_at, expires_at, used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (widget_id, visitor_id, email) DO UPDATE SET
			code_hash = $4, created_at = $5, expires_at = $6, used = $7`,
		c.WidgetID, c.VisitorID, c.Email, c.CodeHash, c.CreatedAt, c.ExpiresAt, c.Used,
	)
	if err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *Store) GetOTP(ctx context.Context, widgetID, visitorID, email string) (models.OTPChallenge, error) {
	var c models.OTPChallenge
	err := s.db.QueryRowContext(ctx,
		`SELECT widget_id, visitor_id, email, code_hash, created_at, expires_at, used
		 FROM otp_challenges WHERE widget_id = $1 AND visitor_id = $2 AND email = $3`,
		widgetID, visitorID, email,
	).Scan(&c.WidgetID, &c.VisitorID, &c.Email, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OTPChallenge{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.OTPChallenge{}, fmt.Errorf("get otp challenge: %w", err)
	}
	return c, nil
}

func (s *Store) MarkOTPUsed(ctx context.Context, widgetID, visitorID, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE otp_challenges SET used = TRUE
		 WHERE widget_id = $1 AND visitor_id = $2 AND email = $3`,
		widgetID, visitorID, email,
	)
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) SaveIdentity(ctx context.Context, ident models.DurableIdentity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO durable_identities (email, visitor_id, token, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		ident.Email, ident.VisitorID, ident.Token, ident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save durable identity: %w", err)
	}
	return nil
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (models.DurableIdentity, error) {
	var ident models.DurableIdentity
	err := s.db.QueryRowContext(ctx,
		`SELECT email, visitor_id, token, created_at FROM durable_identities WHERE email = $1`,
		email,
	).Scan(&ident.Email, &ident.VisitorID, &ident.Token, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DurableIdentity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.DurableIdentity{}, fmt.Errorf("get durable identity: %w", err)
	}
	return ident, nil
}

func (s *Store) SaveAgeSession(ctx context.Context, sess models.AgeSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO age_sessions (id, widget_id, visitor_id, status, outcome, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET status = $4, outcome = $5`,
		sess.ID, sess.WidgetID, sess.VisitorID, sess.Status, sess.Outcome, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save age session: %w", err)
	}
	return nil
}

func (s *Store) GetAgeSession(ctx context.Context, sessionID string) (models.AgeSession, error) {
	var sess models.AgeSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, widget_id, visitor_id, status, outcome, created_at, expires_at
		 FROM age_sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.ID, &sess.WidgetID, &sess.VisitorID, &sess.Status, &sess.Outcome, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AgeSession{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AgeSession{}, fmt.Errorf("get age session: %w", err)
	}
	return sess, nil
}
