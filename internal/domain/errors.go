package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrSlotConflict         = errors.New("slot conflict")
	ErrGatewayUnavailable   = errors.New("gateway unavailable")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrInvalidInput         = errors.New("invalid input")
)
