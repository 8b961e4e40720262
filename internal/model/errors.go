package model

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of these
// so callers can branch with errors.Is on the category alone.
var (
	ErrValidation    = errors.New("validation failed")
	ErrCapacity      = errors.New("capacity exhausted")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrExternalStore = errors.New("external store unavailable")
	ErrTransport     = errors.New("delivery failed")
	ErrNotFound      = errors.New("not found")
)

var (
	// ErrRoomFull is returned when the requested room already holds RoomCapacity occupants.
	ErrRoomFull = fmt.Errorf("room is full: %w", ErrCapacity)
	// ErrAllRoomsFull is returned when no room of the participant's partition has a free bed.
	ErrAllRoomsFull = fmt.Errorf("all rooms are full: %w", ErrCapacity)

	ErrWrongPartition    = fmt.Errorf("room is reserved for the other gender: %w", ErrValidation)
	ErrInvalidRoom       = fmt.Errorf("no such room: %w", ErrValidation)
	ErrGenderUnset       = fmt.Errorf("gender is not specified: %w", ErrValidation)
	ErrAlreadyRegistered = fmt.Errorf("user is already registered: %w", ErrValidation)

	ErrNotRegistered = fmt.Errorf("registration not found: %w", ErrNotFound)
	ErrNotAssigned   = fmt.Errorf("user has no room: %w", ErrNotFound)
)
