package shared

import (
	"errors"

	"github.com/inkwell-press/inkwell/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage converts a domain error into a string fit for end users.
// Internal details never reach the page; unknown errors collapse to a
// generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, httpx.ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, httpx.ErrForbidden):
		return "You do not have permission to do that."
	case errors.Is(err, httpx.ErrConflict):
		return "The record changed while you were editing it. Please try again."
	case errors.Is(err, httpx.ErrUnapproved):
		return "Your account is awaiting approval."
	case errors.Is(err, httpx.ErrValidation):
		return "Some fields are invalid. Please review the form."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	default:
		return "Something went wrong. Please try again."
	}
}
