package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"valid", "user@example.com", "user@example.com", nil},
		{"subdomain", "user@mail.example.com", "user@mail.example.com", nil},
		{"normalized", "  User@Example.COM  ", "user@example.com", nil},
		{"plus tag", "user+tag@example.com", "user+tag@example.com", nil},
		{"empty", "", "", ErrEmpty},
		{"whitespace only", "   ", "", ErrEmpty},
		{"no at sign", "userexample.com", "", ErrInvalidEmail},
		{"no domain dot", "user@localhost", "", ErrInvalidEmail},
		{"double at", "user@@example.com", "", ErrInvalidEmail},
		{"spaces inside", "us er@example.com", "", ErrInvalidEmail},
		{"local part too long", strings.Repeat("a", 65) + "@example.com", "", ErrStringTooLong},
		{"too long overall", strings.Repeat("a", 250) + "@example.com", "", ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Email(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Email(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitre(t *testing.T) {
	if _, err := Titre(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty titre error = %v, want ErrEmpty", err)
	}
	if _, err := Titre("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("blank titre error = %v, want ErrEmpty", err)
	}
	if _, err := Titre(strings.Repeat("x", MaxTitreLength+1)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("oversized titre error = %v, want ErrStringTooLong", err)
	}

	got, err := Titre("  Accident parking  ")
	if err != nil {
		t.Fatalf("Titre: %v", err)
	}
	if got != "Accident parking" {
		t.Errorf("Titre = %q, want trimmed value", got)
	}

	// Rune count, not byte count: accented titles near the limit pass.
	if _, err := Titre(strings.Repeat("é", MaxTitreLength)); err != nil {
		t.Errorf("accented titre at the limit: %v", err)
	}
}

func TestDescription(t *testing.T) {
	if got, err := Description(""); err != nil || got != "" {
		t.Errorf("empty description = %q, %v; want accepted", got, err)
	}
	if _, err := Description(strings.Repeat("x", MaxDescriptionLength+1)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("oversized description error = %v, want ErrStringTooLong", err)
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "longenough", nil},
		{"exactly minimum", strings.Repeat("x", MinPasswordLength), nil},
		{"with spaces kept", "  spaced pass  ", nil},
		{"empty", "", ErrEmpty},
		{"too short", "short", ErrStringTooShort},
		{"over bcrypt limit", strings.Repeat("x", MaxPasswordLength+1), ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Password(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Password error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Password(%q): %v", tt.input, err)
			}
		})
	}
}
