// Package apperror holds the closed set of errors the API can return. Each
// kind carries a fixed HTTP status and a client-safe message; everything
// else is reported as a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"sceneit-backend/internal/store"
)

// Kind identifies one member of the error taxonomy.
type Kind int

const (
	KindInternal Kind = iota
	KindUserNotFound
	KindUsernameExists
	KindUsernameNotFound
	KindEmailExists
	KindPasswordIncorrect
	KindSamePassword
	KindInvalidTimestamp
	KindInvalidMediaID
	KindValidation
	KindMalformed
	KindUnauthenticated
	KindRateLimited
	KindNotFound
)

// AppError is the only error type translated into a non-500 response.
type AppError struct {
	Kind    Kind
	Code    int
	Message string

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s (internal: %v)", e.Message, e.Internal)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches any AppError of the same kind, so errors.Is(err, apperror.SamePassword())
// works without comparing pointers.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind
}

func newKind(kind Kind) *AppError {
	code, message := describe(kind)
	return &AppError{Kind: kind, Code: code, Message: message}
}

// describe is the single place where status codes and messages are fixed.
func describe(kind Kind) (int, string) {
	switch kind {
	case KindUserNotFound:
		return http.StatusUnauthorized, "User not found."
	case KindUsernameExists:
		return http.StatusConflict, "Username already exists."
	case KindUsernameNotFound:
		return http.StatusUnauthorized, "Username not found."
	case KindEmailExists:
		return http.StatusConflict, "Email already exists."
	case KindPasswordIncorrect:
		return http.StatusUnauthorized, "Password is incorrect."
	case KindSamePassword:
		return http.StatusBadRequest, "New password cannot be the old password."
	case KindInvalidTimestamp:
		return http.StatusBadRequest, "Invalid timestamp provided"
	case KindInvalidMediaID:
		return http.StatusBadRequest, "Invalid media id provided"
	case KindValidation:
		return http.StatusBadRequest, "Validation failed"
	case KindMalformed:
		return http.StatusBadRequest, "Malformed request body"
	case KindUnauthenticated:
		return http.StatusUnauthorized, "Unauthorized"
	case KindRateLimited:
		return http.StatusTooManyRequests, "Too many requests, please try again later."
	case KindNotFound:
		return http.StatusNotFound, "Not found"
	case KindInternal:
		return http.StatusInternalServerError, "An unexpected error occurred. Please try again."
	}
	return http.StatusInternalServerError, "An unexpected error occurred. Please try again."
}

func UserNotFound() *AppError      { return newKind(KindUserNotFound) }
func UsernameExists() *AppError    { return newKind(KindUsernameExists) }
func UsernameNotFound() *AppError  { return newKind(KindUsernameNotFound) }
func EmailExists() *AppError       { return newKind(KindEmailExists) }
func PasswordIncorrect() *AppError { return newKind(KindPasswordIncorrect) }
func SamePassword() *AppError      { return newKind(KindSamePassword) }
func InvalidTimestamp() *AppError  { return newKind(KindInvalidTimestamp) }
func InvalidMediaID() *AppError    { return newKind(KindInvalidMediaID) }
func Unauthenticated() *AppError   { return newKind(KindUnauthenticated) }
func RateLimited() *AppError       { return newKind(KindRateLimited) }
func NotFound() *AppError          { return newKind(KindNotFound) }

// Validation carries the joined field messages of a failed request.
func Validation(message string) *AppError {
	e := newKind(KindValidation)
	e.Message = message
	return e
}

// Malformed reports a body that could not be decoded at all.
func Malformed(err error) *AppError {
	e := newKind(KindMalformed)
	e.Internal = err
	return e
}

// Internal wraps an unexpected failure. The client only sees a generic message.
func Internal(err error) *AppError {
	e := newKind(KindInternal)
	e.Internal = err
	return e
}

// FromStore maps store sentinels onto the taxonomy. Unknown errors become
// internal errors.
func FromStore(err error) *AppError {
	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrUsernameExists):
		return UsernameExists()
	case errors.Is(err, store.ErrEmailExists):
		return EmailExists()
	case errors.Is(err, store.ErrUserNotFound):
		return UserNotFound()
	case errors.Is(err, store.ErrMediaNotFound):
		return InvalidMediaID()
	case errors.Is(err, store.ErrInvalidEmail):
		return Validation("email: must be a well-formed email address")
	case errors.Is(err, store.ErrInvalidUsername):
		return Validation("username: must be 1-16 non-blank characters")
	case errors.Is(err, store.ErrInvalidMedia):
		return Validation("media: title must not be blank and type must be known")
	}
	return Internal(err)
}

// SafeMessage returns the client-safe message of err.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	_, msg := describe(KindInternal)
	return msg
}

// SafeCode returns the HTTP status of err, 500 for anything unclassified.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
