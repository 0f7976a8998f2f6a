package domain

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrExternalService = errors.New("external service failure")
	ErrTimeout         = errors.New("timed out waiting for turn")
	ErrUnauthorized    = errors.New("unauthorized")
)
