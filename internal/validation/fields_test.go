package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		wantErr string
	}{
		{"Shortest Plausible", "a@b.co", ""},
		{"Regular", "someone@example.com", ""},
		{"No Domain Dot", "x@y", "Invalid email address"},
		{"Five Characters Fail Syntax First", "a@b.c", "Invalid email address"},
		{"Missing At", "example.com", "Invalid email address"},
		{"Too Long", strings.Repeat("a", 60) + "@b.com", "Email must not exceed 64 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateUsername("test_user123"))
	assert.NoError(t, ValidateUsername("someone@example.com"), "signup uses the email as username")
	assert.Error(t, ValidateUsername("tu"))
	assert.Error(t, ValidateUsername("two words"))
	assert.Error(t, ValidateUsername(strings.Repeat("u", 65)))
}

func TestProfileAndPostFields(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateFullName("Ada Lovelace"))
	assert.Error(t, ValidateFullName(strings.Repeat("n", 101)))
	assert.NoError(t, ValidateBio(""))
	assert.Error(t, ValidateBio(strings.Repeat("b", 501)))

	assert.NoError(t, ValidatePostContent("hello"))
	assert.Error(t, ValidatePostContent("   "))
	assert.Error(t, ValidatePostContent(strings.Repeat("c", 5001)))
}

func TestValidateURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateURL("Image URL", ""))
	assert.NoError(t, ValidateURL("Image URL", "https://cdn.example.com/a.png"))
	assert.EqualError(t, ValidateURL("Image URL", "javascript:alert(1)"), "Image URL must be an http or https URL")
	assert.Error(t, ValidateURL("Avatar URL", "/relative.png"))
}
