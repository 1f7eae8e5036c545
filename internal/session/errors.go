package session

import (
	"errors"
	"fmt"
	"strings"
)

type AuthReason int

const (
	Unknown AuthReason = iota
	InvalidEmail
	WrongCredentials
	UserNotFound
)

func (r AuthReason) String() string {
	switch r {
	case InvalidEmail:
		return "InvalidEmail"
	case WrongCredentials:
		return "WrongCredentials"
	case UserNotFound:
		return "UserNotFound"
	default:
		return "Unknown"
	}
}

// providerCodes is the complete mapping from identity provider codes to
// reasons. Codes missing here map to Unknown.
var providerCodes = map[string]AuthReason{
	"invalid-email":  InvalidEmail,
	"wrong-password": WrongCredentials,
	"user-not-found": UserNotFound,
}

// ReasonForCode maps a provider error code, with or without its "auth/"
// namespace, to an AuthReason.
func ReasonForCode(code string) AuthReason {
	code = strings.TrimPrefix(code, "auth/")
	if reason, ok := providerCodes[code]; ok {
		return reason
	}
	return Unknown
}

// ValidationError is returned before any provider call when required input
// is missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing " + strings.Join(e.Fields, " and ")
}

type AuthError struct {
	Reason AuthReason
	Code   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sign in failed: %s (%s)", e.Reason, e.Code)
	}
	return fmt.Sprintf("sign in failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

type SignOutError struct {
	Err error
}

func (e *SignOutError) Error() string {
	return fmt.Sprintf("sign out failed: %v", e.Err)
}

func (e *SignOutError) Unwrap() error { return e.Err }

// ProviderCoder is implemented by identity provider errors that carry a
// provider error code.
type ProviderCoder interface {
	ProviderCode() string
}

func newAuthError(err error) *AuthError {
	var coder ProviderCoder
	if errors.As(err, &coder) {
		code := coder.ProviderCode()
		return &AuthError{Reason: ReasonForCode(code), Code: code, Err: err}
	}
	return &AuthError{Reason: Unknown, Err: err}
}

type Alert struct {
	Title   string
	Message string
}

// AlertFor returns the fixed user-facing text for an error produced by the
// Manager.
func AlertFor(err error) Alert {
	var validationErr *ValidationError
	var authErr *AuthError
	var signOutErr *SignOutError
	switch {
	case errors.As(err, &validationErr):
		return Alert{Title: "Entrar", Message: "Informe e-mail e a senha"}
	case errors.As(err, &authErr):
		switch authErr.Reason {
		case InvalidEmail:
			return Alert{Title: "Entrar", Message: "E-mail inválido."}
		case WrongCredentials, UserNotFound:
			return Alert{Title: "Entrar", Message: "E-mail ou Senha inválida."}
		default:
			return Alert{Title: "Entrar", Message: "Não foi possivel acessar."}
		}
	case errors.As(err, &signOutErr):
		return Alert{Title: "Sair", Message: "Não foi possivel sair."}
	default:
		return Alert{Title: "Erro", Message: "Não foi possivel concluir a operação."}
	}
}
