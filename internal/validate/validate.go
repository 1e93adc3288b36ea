// Package validate provides input validation for user-supplied fields:
// emails, passwords, and the free-text fields carried on dossiers.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation errors.
var (
	ErrEmpty          = errors.New("value is empty")
	ErrStringTooShort = errors.New("value is too short")
	ErrStringTooLong  = errors.New("value is too long")
)

// Field length bounds.
const (
	MaxTitreLength       = 200
	MaxDescriptionLength = 5000
	MaxRaisonLength      = 1000

	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
)

// bounded checks a trimmed string against length bounds, counting runes.
func bounded(s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if min > 0 {
			return "", ErrEmpty
		}
		return s, nil
	}
	length := utf8.RuneCountInString(s)
	if length < min {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, min)
	}
	if max > 0 && length > max {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, max)
	}
	return s, nil
}

// Titre validates a dossier title: required, at most 200 characters.
// Returns the trimmed value.
func Titre(titre string) (string, error) {
	return bounded(titre, 1, MaxTitreLength)
}

// Description validates a free-text description: optional, at most 5000
// characters. Returns the trimmed value.
func Description(desc string) (string, error) {
	return bounded(desc, 0, MaxDescriptionLength)
}

// Raison validates a status-change reason: optional, at most 1000
// characters. Returns the trimmed value.
func Raison(raison string) (string, error) {
	return bounded(raison, 0, MaxRaisonLength)
}

// Password validates a plaintext password before hashing. Unlike the
// text fields, the value is never trimmed: surrounding whitespace is
// part of the password.
func Password(password string) error {
	if password == "" {
		return ErrEmpty
	}
	length := len(password)
	if length < MinPasswordLength {
		return fmt.Errorf("%w: need at least %d characters", ErrStringTooShort, MinPasswordLength)
	}
	if length > MaxPasswordLength {
		return fmt.Errorf("%w: maximum is %d bytes", ErrStringTooLong, MaxPasswordLength)
	}
	return nil
}
