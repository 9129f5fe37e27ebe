package auth

import "errors"

var (
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrUnauthenticated  = errors.New("auth: authentication required")
	ErrDomainNotAllowed = errors.New("auth: email domain not allowed")
	ErrUnknownRole      = errors.New("auth: unknown role")
)
