package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the remote client, and
// other infrastructure layers return these (optionally wrapped) so the engine
// can translate them into domain decisions.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or at the remote authority
// - ErrExpired: cached record/session past its expiry
// - ErrAlreadyUsed: resource (one-time code) already consumed
// - ErrGone: remote configuration no longer exists (terminal, stop polling)
// - ErrRateLimited: remote authority asked us to back off
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: transient network/server failure, eligible for retry
//
// For validation errors (bad input, malformed fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrGone         = errors.New("gone")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
