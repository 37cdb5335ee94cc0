package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength bounds one user message.
const MaxContentLength = 10000

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateUserID validates a free-form user ID. Empty is allowed.
func ValidateUserID(id string) error {
	if len(id) > 128 {
		return errors.New("user ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("user ID must be valid UTF-8")
	}
	return nil
}
