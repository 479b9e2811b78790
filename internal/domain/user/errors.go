package user

import "volt/internal/shared/errors"

var (
	ErrUserNotFound      = errors.NewNotFoundError("user not found")
	ErrUsernameTaken     = errors.NewConflictError("username is already taken")
	ErrEmailTaken        = errors.NewConflictError("email is already registered")
	ErrInvalidCredential = errors.NewUnauthorizedError("invalid credentials")
	ErrNotActivated      = errors.NewForbiddenError("account is not activated")
	ErrCodeExpired       = errors.NewUnauthorizedError("expired")
	ErrCodeIncorrect     = errors.NewUnauthorizedError("incorrect")
)
