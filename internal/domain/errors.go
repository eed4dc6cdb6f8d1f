package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a failure that is safe to show to the client.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by code so sentinels survive re-wrapping with details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation returns a 400-class error with the given message.
func Validation(msg string) *Error {
	return newError(KindValidation, CodeInvalidInput, msg)
}

// Wrap attaches a cause to a sentinel while keeping its kind, code and message.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUserExists         = "USER_EXISTS"
	CodeNoAccount          = "NO_ACCOUNT"
	CodeInvalidOtp         = "INVALID_OTP"
	CodeOtpExpired         = "OTP_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidYear        = "INVALID_YEAR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

var (
	ErrUserExists         = newError(KindConflict, CodeUserExists, "User already exists")
	ErrNoAccount          = newError(KindValidation, CodeNoAccount, "No account with this email")
	ErrInvalidOtp         = newError(KindValidation, CodeInvalidOtp, "Invalid OTP")
	ErrOtpExpired         = newError(KindValidation, CodeOtpExpired, "OTP expired")
	ErrInvalidCredentials = newError(KindValidation, CodeInvalidCredentials, "Invalid credentials")
	ErrInvalidYear        = newError(KindValidation, CodeInvalidYear, "Invalid year")
	ErrUnauthorized       = newError(KindUnauthorized, CodeUnauthorized, "Unauthorized")
	ErrForbidden          = newError(KindForbidden, CodeForbidden, "Not allowed")
	ErrAdminOnly          = newError(KindForbidden, CodeForbidden, "Admin only")
	ErrNotFound           = newError(KindNotFound, CodeNotFound, "Not found")
)

// KindOf reports the kind of err; anything that is not a domain error is internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
