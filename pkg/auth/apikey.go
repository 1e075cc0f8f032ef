package auth

import (
	"crypto/subtle"
	"errors"
)

// MinAPIKeyLength is the shortest API key accepted.
const MinAPIKeyLength = 8

// API key errors.
var (
	ErrMissingAPIKey = errors.New("API key required")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// CheckAPIKey compares a provided key against the expected one.
func CheckAPIKey(expected, provided string) error {
	if provided == "" {
		return ErrMissingAPIKey
	}
	if len(provided) < MinAPIKeyLength {
		return ErrInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
