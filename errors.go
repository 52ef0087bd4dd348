package identity

import "errors"

var (
	// ErrUsernameInvalid is returned when a username fails the character
	// rules or is already taken.
	ErrUsernameInvalid = errors.New("username is not valid")
	// ErrEmailInvalid is returned when an email fails the character rules
	// or is already taken.
	ErrEmailInvalid = errors.New("email is not valid")
	// ErrPasswordMismatch is returned when a supplied password does not
	// verify against the stored hash.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrUserNotFound is returned when no record matches the identifier,
	// or when an index entry is missing for an existing record.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid is returned when a bearer token does not resolve to
	// a live user id.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTooManyRequests is reserved for throttled operations. No current
	// operation returns it.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
	// ErrEngineNotReady is returned when the engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
