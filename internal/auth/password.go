package auth

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Provider error codes returned by the sign-in and registration endpoints.
const (
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWrongPassword      = "auth/wrong-password"
	CodeUserNotFound       = "auth/user-not-found"
	CodeWeakPassword       = "auth/weak-password"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodeMissingCredentials = "auth/missing-credentials"
	CodeInternal           = "auth/internal-error"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

var ErrWeakPassword = errors.New("password must have between 6 characters and 72 bytes")

var validate = validator.New()

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

func HashPassword(password string) (string, error) {
	if len([]rune(password)) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrWeakPassword
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
