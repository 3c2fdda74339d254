package process

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle move is not allowed
	// by the state machine.  The record is left untouched.
	ErrInvalidTransition = errors.New("process: invalid state transition")

	// ErrUnknownCategory is returned for an unrecognised category name.
	ErrUnknownCategory = errors.New("process: unknown category")
)
