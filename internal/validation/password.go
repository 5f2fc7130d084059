// Package validation provides input validation utilities.
//
// Each validator returns the first violated rule, checked in a fixed order.
package validation

import (
	"errors"
	"regexp"
	"unicode"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var codeRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidatePassword checks password strength. Character classes follow
// Unicode, so letters and digits from any script count.
func ValidatePassword(password string) error {
	if len([]rune(password)) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}
	if !hasRune(password, unicode.IsUpper) {
		return errors.New("Password must contain at least one uppercase letter")
	}
	if !hasRune(password, unicode.IsLower) {
		return errors.New("Password must contain at least one lowercase letter")
	}
	if !hasRune(password, unicode.IsDigit) {
		return errors.New("Password must contain at least one number")
	}
	if !hasRune(password, isSpecial) {
		return errors.New("Password must contain at least one special character")
	}
	if len(password) > maxPasswordBytes {
		return errors.New("Password must not exceed 72 bytes")
	}
	return nil
}

// ValidateVerificationCode checks a 6-digit email verification code.
func ValidateVerificationCode(code string) error {
	if len(code) != 6 {
		return errors.New("Verification code must be exactly 6 characters")
	}
	if !codeRegex.MatchString(code) {
		return errors.New("Verification code must contain only numbers")
	}
	return nil
}

func hasRune(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
