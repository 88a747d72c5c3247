package services

import (
	"errors"

	"case_portal_go/services/lifecycle"
	"case_portal_go/services/policy"
)

// Errors returned by case operations. Handlers map them to HTTP status codes.
var (
	ErrUnauthorized      = policy.ErrUnauthorized
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	ErrEmptyContent      = errors.New("message has neither text nor file")
	ErrNotFound          = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
)
