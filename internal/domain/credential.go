package domain

import (
	"strings"
	"time"
)

// CredentialRecord is the single outstanding one-time code for an identity.
type CredentialRecord struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the record is no longer valid at now.
// A record is still valid at exactly ExpiresAt.
func (r CredentialRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// NormalizeEmail returns the canonical identity for a raw email: trimmed and lowercased.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
