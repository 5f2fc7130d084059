package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Field limits.
const (
	MinEmailLength    = 5
	MaxEmailLength    = 64
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MaxFullNameLength = 100
	MaxBioLength      = 500
	MaxContentLength  = 5000
)

// ValidateEmail checks syntax first, then length.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errors.New("Invalid email address")
	}
	// The pattern already needs six characters, so this never fires today.
	if len(email) < MinEmailLength {
		return errors.New("Email must be at least 5 characters")
	}
	if len(email) > MaxEmailLength {
		return errors.New("Email must not exceed 64 characters")
	}
	return nil
}

// ValidateUsername allows any printable text without whitespace.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return errors.New("Username must be at least 3 characters long")
	}
	if n > MaxUsernameLength {
		return errors.New("Username must not exceed 64 characters")
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return errors.New("Username cannot contain whitespace")
	}
	return nil
}

func ValidateFullName(name string) error {
	if utf8.RuneCountInString(name) > MaxFullNameLength {
		return errors.New("Full name must not exceed 100 characters")
	}
	return nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return errors.New("Bio must not exceed 500 characters")
	}
	return nil
}

// ValidatePostContent requires non-blank content within the length limit.
func ValidatePostContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("Post content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errors.New("Post content must not exceed 5000 characters")
	}
	return nil
}

// ValidateURL accepts an empty value or an absolute http(s) URL.
func ValidateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(field + " must be an http or https URL")
	}
	return nil
}
