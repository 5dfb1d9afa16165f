package authsync

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Structured text codes replace substring matching on provider messages;
// providers map their wire errors onto these, and NormalizeError maps them
// onto AuthError names.
const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeUserExists         = "USER_ALREADY_EXISTS"
	TextCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	TextCodeSessionMissing     = "SESSION_MISSING"
	TextCodeProviderFailure    = "PROVIDER_FAILURE"
)

// ErrInvalidCredentials is returned for unknown identities and password
// mismatches alike, so the two cases are indistinguishable to callers.
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserExists is returned when signing up an email that is already registered.
var ErrUserExists = goerrors.New("user already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserExists).
	WithCode(goerrors.CodeConflict)

// ErrEmailNotConfirmed is returned when the identity exists but has not
// completed email confirmation.
var ErrEmailNotConfirmed = goerrors.New("email not confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotConfirmed).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionMissing is returned by provider calls that need a live session.
var ErrSessionMissing = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMissing).
	WithCode(goerrors.CodeUnauthorized)

// UnexpectedErrorName is the AuthError name assigned to failures the
// provider did not describe: transport faults, panics, malformed responses.
const UnexpectedErrorName = "UnexpectedError"

// AuthError is the single failure shape Login, Register, and Logout
// resolve with. Provider-reported errors keep their name; everything else
// is normalized to UnexpectedErrorName.
type AuthError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	if e == nil {
		return "auth error"
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// IsUnexpected reports whether the failure came from outside the
// provider's error vocabulary.
func (e *AuthError) IsUnexpected() bool {
	return e != nil && e.Name == UnexpectedErrorName
}

// NormalizeError folds any error into the AuthError boundary shape.
// Rich errors carrying a text code keep it as their name; bare errors
// become UnexpectedError. A nil error stays nil.
func NormalizeError(err error) *AuthError {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		name := richErr.TextCode
		if name == "" {
			name = TextCodeProviderFailure
		}
		return &AuthError{
			Name:    name,
			Message: richErr.Message,
		}
	}

	return &AuthError{
		Name:    UnexpectedErrorName,
		Message: err.Error(),
	}
}

// normalizePanic turns a recovered panic value into the same boundary shape.
func normalizePanic(recovered any) *AuthError {
	return &AuthError{
		Name:    UnexpectedErrorName,
		Message: fmt.Sprintf("panic: %v", recovered),
	}
}
