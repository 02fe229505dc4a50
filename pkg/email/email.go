// Package email normalizes and validates the addresses flowing through the
// identity verification path. Validation is deliberately shallow: the OTP
// round trip is the real proof an address works, this only catches input
// that cannot be one.
package email

import (
	"net/mail"
	"strings"
)

// Normalize trims whitespace and lowercases the address. Identity lookups
// key on the normalized form so one mailbox maps to one durable identity.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether address parses as a bare RFC 5322 address.
// Display-name forms ("Ada <ada@example.com>") are rejected, the consent
// flow wants the address alone.
func Valid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Address == address
}
