package store

import "errors"

var (
	ErrInvalidName        = errors.New("invalid patient name")
	ErrNoAssignments      = errors.New("no assignments requested")
	ErrUnknownSpecialty   = errors.New("specialty not found")
	ErrRoomOutOfRange     = errors.New("room out of range")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyAttended    = errors.New("assignment already attended")
)
