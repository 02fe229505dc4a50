package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "consentgate/pkg/domain-errors"
)

// Identifier shape shared by activity ids, purpose ids, and widget ids:
// a letter or digit followed by up to 63 letters, digits, hyphens, or
// underscores. Anything else is stripped at trust boundaries rather than
// silently rewritten.
const maxIDLength = 64

// Limits applied when building payloads and parsing configuration. Oversized
// inputs are dropped, never truncated into different data.
const (
	// MaxIDsPerField caps every id array in a submission payload.
	MaxIDsPerField = 100
	// MaxPatternLength caps display-rule and classifier patterns to guard
	// against pathological matching cost.
	MaxPatternLength = 512
	// DefaultRulePriority applies when a display rule omits its priority.
	DefaultRulePriority = 100
)

// ID identifies an activity or purpose within a configuration snapshot.
//
// Usage: construct via ParseID at trust boundaries to enforce the shape;
// direct casting bypasses validation.
type ID string

// ParseID constructs an ID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, too long, or
// contains characters outside the identifier alphabet.
func ParseID(s string) (ID, error) {
	if err := checkIDShape(s); err != nil {
		return "", err
	}
	return ID(s), nil
}

// IsValid reports whether the id satisfies the identifier shape.
func (id ID) IsValid() bool {
	return checkIDShape(string(id)) == nil
}

func (id ID) String() string {
	return string(id)
}

// WidgetID scopes configuration, persisted local state, and remote records to
// one embedded widget instance.
type WidgetID string

// ParseWidgetID constructs a WidgetID from external input.
func ParseWidgetID(s string) (WidgetID, error) {
	if err := checkIDShape(s); err != nil {
		return "", err
	}
	return WidgetID(s), nil
}

func (w WidgetID) String() string {
	return string(w)
}

// VisitorID identifies the visitor at the remote authority. It is either a
// device-local ephemeral UUID or a durable identity issued by the authority
// after identity verification.
type VisitorID string

// NewEphemeralVisitorID generates a device-local visitor identity.
func NewEphemeralVisitorID() VisitorID {
	return VisitorID(uuid.NewString())
}

// ParseVisitorID constructs a VisitorID from external input (cache reads,
// authority responses). The durable form shares the identifier alphabet but
// may be longer than a plain id, so only the alphabet and a sane length are
// enforced.
func ParseVisitorID(s string) (VisitorID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visitor id cannot be empty")
	}
	if len(s) > 2*maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visitor id too long")
	}
	for _, r := range s {
		if !isIDRune(r) && r != '-' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "visitor id contains invalid characters")
		}
	}
	return VisitorID(s), nil
}

func (v VisitorID) String() string {
	return string(v)
}

func checkIDShape(s string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	if len(s) > maxIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, "id too long")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "_") {
		return dErrors.New(dErrors.CodeInvalidInput, "id must start with a letter or digit")
	}
	for _, r := range s {
		if !isIDRune(r) && r != '-' && r != '_' {
			return dErrors.New(dErrors.CodeInvalidInput, "id contains invalid characters")
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	return false
}

// FilterIDs drops every candidate that fails the identifier shape and caps the
// result at MaxIDsPerField, preserving order. Invalid entries are returned
// separately so callers can log the mismatch.
func FilterIDs(candidates []string) (valid []ID, dropped []string) {
	for i, c := range candidates {
		if len(valid) == MaxIDsPerField {
			dropped = append(dropped, candidates[i:]...)
			break
		}
		id, err := ParseID(c)
		if err != nil {
			dropped = append(dropped, c)
			continue
		}
		valid = append(valid, id)
	}
	return valid, dropped
}
