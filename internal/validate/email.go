package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned when an email does not look deliverable.
var ErrInvalidEmail = errors.New("invalid email format")

// emailPattern matches the common email shapes. Stricter validation
// happens at the SMTP level.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address and returns it normalized (trimmed,
// lowercased). Length limits follow RFC 5321.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	local, domain, _ := strings.Cut(email, "@")
	if len(local) > 64 || len(domain) > 255 {
		return "", ErrStringTooLong
	}
	return email, nil
}
