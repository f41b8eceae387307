// Package identity normalizes user-entered identifiers so that equivalent
// inputs always map to the same index key.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MinUsernameLen is the minimum length of a normalized username key.
const MinUsernameLen = 3

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// NormalizeUsernameKey returns the index key for a display username:
// surrounding whitespace trimmed, case-folded to lowercase.
func NormalizeUsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizePhone strips whitespace, hyphens and parentheses from a raw phone
// number, preserving digits and a leading +.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '\t', '-', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PhoneFingerprint returns the lowercase-hex SHA-256 digest of a normalized
// phone number. The index stores this digest, never the raw number.
func PhoneFingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// PossiblePhone reports whether a raw phone number looks plausible: after
// separator stripping it must be 7-15 digits with an optional leading +.
func PossiblePhone(raw string) bool {
	return phonePattern.MatchString(NormalizePhone(raw))
}
