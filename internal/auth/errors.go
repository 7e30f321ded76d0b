package auth

import "errors"

// Typed credential errors. Authentication operations return these instead of
// panicking; callers branch with errors.Is.
var (
	// ErrNotFound indicates that no user with that username exists
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists indicates a duplicate username (case-insensitive)
	ErrAlreadyExists = errors.New("username already exists")

	// ErrInvalidCredentials indicates a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingSecurityQuestion indicates that no security question is configured
	ErrMissingSecurityQuestion = errors.New("no security question configured")

	// ErrInvalidAnswer indicates a wrong security answer
	ErrInvalidAnswer = errors.New("invalid security answer")
)
