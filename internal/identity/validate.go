package identity

import "fmt"

// FieldError is a validation failure that belongs to a specific input field.
// It is produced before any store interaction happens.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateUsername checks a display username and returns its normalized key.
func ValidateUsername(username string) (string, error) {
	key := NormalizeUsernameKey(username)
	if key == "" {
		return "", &FieldError{Field: "username", Message: "username is required"}
	}
	if len(key) < MinUsernameLen {
		return "", &FieldError{Field: "username", Message: fmt.Sprintf("username must be at least %d characters", MinUsernameLen)}
	}
	return key, nil
}

// ValidatePhone checks a raw phone number and returns its normalized form
// and fingerprint.
func ValidatePhone(raw string) (normalized, fingerprint string, err error) {
	if NormalizePhone(raw) == "" {
		return "", "", &FieldError{Field: "phone", Message: "phone number is required"}
	}
	if !PossiblePhone(raw) {
		return "", "", &FieldError{Field: "phone", Message: "phone number doesn't look real"}
	}
	normalized = NormalizePhone(raw)
	return normalized, PhoneFingerprint(normalized), nil
}
