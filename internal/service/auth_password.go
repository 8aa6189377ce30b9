package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================
// Password and email policy
// ============================================================

const minPasswordLength = 8

// validatePassword requires at least 8 characters with a letter and a digit.
func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return &domain.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", minPasswordLength),
		}
	}
	// bcrypt ignores everything past 72 bytes.
	if len(pw) > 72 {
		return &domain.ErrValidation{Field: "password", Message: "must be at most 72 bytes"}
	}

	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return &domain.ErrValidation{Field: "password", Message: "must contain at least one letter and one digit"}
	}
	return nil
}

func (s *AuthService) hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// normalizeEmail lowercases a bare address and rejects display-name forms.
func normalizeEmail(field, raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", &domain.ErrValidation{Field: field, Message: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &domain.ErrValidation{Field: field, Message: fmt.Sprintf("invalid email address: %q", raw)}
	}
	return email, nil
}
