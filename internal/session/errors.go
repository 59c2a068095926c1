package session

import "errors"

var (
	// ErrNotFound is returned when no session exists for the key.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when the session's TTL has elapsed. The caller
	// should tell the user to start a new conversation.
	ErrExpired = errors.New("session expired")
)
