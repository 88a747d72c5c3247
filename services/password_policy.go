package services

import (
	"fmt"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// ValidatePassword rejects short, all-numeric, or username-like passwords
func ValidatePassword(password, username string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidInput, MinPasswordLength)
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("%w: password must not be entirely numeric", ErrInvalidInput)
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return fmt.Errorf("%w: password must not contain the username", ErrInvalidInput)
	}
	return nil
}
