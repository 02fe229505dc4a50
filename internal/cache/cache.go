package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/sentinel"
)

// MaxEntrySize bounds any single cached value. The backing medium can be
// tampered with between reads, so writes and reads are both size-checked.
const MaxEntrySize = 16 * 1024

// Store is the expiring key-value contract the engine persists local state
// through: consent cache, pending verification sessions, generated
// identifiers. Expiry is passive: checked at read time, never actively
// purged.
type Store interface {
	// Get returns the value or sentinel.ErrNotFound / sentinel.ErrExpired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores the value with a bounded lifetime.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key scopes a state name to one widget instance, matching the
// per-widget-identifier scoping of persisted local state.
func Key(widgetID, name string) string {
	return fmt.Sprintf("cg:%s:%s", widgetID, name)
}

// PutJSON marshals and stores a value, refusing oversized payloads rather
// than storing a truncated one.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if len(raw) > MaxEntrySize {
		return dErrors.Newf(dErrors.CodeTooLarge, "cache entry %s exceeds %d bytes", key, MaxEntrySize)
	}
	return s.Put(ctx, key, raw, ttl)
}

// GetJSON reads and unmarshals a value defensively: oversized or malformed
// stored bytes are treated as not found, since external tampering between
// reads is possible and must never crash the engine.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) > MaxEntrySize {
		return fmt.Errorf("cache entry %s oversized: %w", key, sentinel.ErrNotFound)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cache entry %s malformed: %w", key, sentinel.ErrNotFound)
	}
	return nil
}
