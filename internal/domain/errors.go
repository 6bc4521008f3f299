package domain

import "errors"

// Sentinel errors shared across services and repositories.
var (
	// ErrNotFound is returned when an event, invitee, or token cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded is returned when a status commit would push the event
	// past its guest capacity. The invitee is left unchanged.
	ErrCapacityExceeded = errors.New("event capacity exceeded")

	// ErrConflict is returned when a conditional update found the invitee in a
	// different status than expected. Callers re-resolve and retry or no-op.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrIllegalTransition is returned when a requested status change has no
	// edge in the invitee state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrDuplicateToken is returned when an RSVP token collides with one
	// already assigned. Callers regenerate and retry.
	ErrDuplicateToken = errors.New("rsvp token already in use")

	// ErrInvalidResponse is returned for RSVP responses outside {yes, no}.
	ErrInvalidResponse = errors.New("invalid rsvp response")
)
