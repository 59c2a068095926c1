package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateTranscript validates transcript or follow-up message content.
func ValidateTranscript(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 500000 { // ~500KB; call transcripts run long
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionKey validates a session key derived from the originating
// channel/thread identifier.
func ValidateSessionKey(key string) error {
	if len(key) == 0 {
		return errors.New("session key cannot be empty")
	}
	if len(key) > 128 {
		return errors.New("session key exceeds maximum length")
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return errors.New("session key contains invalid characters")
		}
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	if len(id) == 0 {
		return errors.New("tenant ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("tenant ID exceeds maximum length")
	}
	return nil
}
