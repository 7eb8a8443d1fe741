package auth

import (
	"regexp"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ValidEmail reports whether email has a plausible address shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// CheckPasswordStrength requires 8+ characters with an upper-case letter, a
// lower-case letter and a digit.
func CheckPasswordStrength(password string) error {
	if len(password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters long", map[string]any{"field": "password"})
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return apperrors.NewValidationError("password must contain at least one uppercase letter", map[string]any{"field": "password"})
	case !lower:
		return apperrors.NewValidationError("password must contain at least one lowercase letter", map[string]any{"field": "password"})
	case !digit:
		return apperrors.NewValidationError("password must contain at least one number", map[string]any{"field": "password"})
	}
	return nil
}
