package store

import (
	"context"
	"time"

	"hap/queue-service/internal/models"
)

// AssignmentRequest is one (specialty, room) pair requested at registration.
// A zero RoomID means "use the specialty's configured room"; the admission
// desk may override with any room in range.
type AssignmentRequest struct {
	Specialty string
	RoomID    int
}

type CreateTicketInput struct {
	PatientName string
	Assignments []AssignmentRequest
	CreatedAt   time.Time
}

type CallNextInput struct {
	RoomID   int
	CalledAt time.Time
}

// UpdateTicketInput corrects a ticket after the fact. Zero values leave the
// corresponding field untouched; AssignmentID selects which assignment the
// specialty/room correction applies to.
type UpdateTicketInput struct {
	TicketID     int64
	PatientName  string
	AssignmentID int64
	Specialty    string
	RoomID       int
}

// TicketStore is the durable record of tickets and their per-room assignments.
// CallNext is the queue selector: it claims the oldest waiting assignment for
// a room atomically, so two rooms (or a double click) never attend the same
// assignment twice. Day-scoped reads take the caller's notion of "now"; each
// store resolves the calendar-day bounds in its configured location.
type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (models.Ticket, bool, error)
	ListWaiting(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error)
	ListAttended(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error)
	CallNext(ctx context.Context, input CallNextInput) (models.Assignment, bool, error)
	LastAttended(ctx context.Context, roomID int, day time.Time) (models.Assignment, bool, error)
	UpdateTicket(ctx context.Context, input UpdateTicketInput) (models.Ticket, error)
	HasPendingTicket(ctx context.Context, patientName string, day time.Time) (bool, error)
	ListSpecialties(ctx context.Context) ([]models.Specialty, error)
}

// DayBounds returns the half-open [start, end) interval of the calendar day
// containing at, in the given location. Queue scoping uses these bounds so
// yesterday's unattended assignments never resurface.
func DayBounds(at time.Time, loc *time.Location) (time.Time, time.Time) {
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ValidateCreate applies the registration rules that do not need storage:
// patient name shape, non-empty assignment list, room range.
func ValidateCreate(input CreateTicketInput) error {
	if ok, _ := models.ValidatePatientName(input.PatientName); !ok {
		return ErrInvalidName
	}
	if len(input.Assignments) == 0 {
		return ErrNoAssignments
	}
	for _, req := range input.Assignments {
		if req.RoomID != 0 && !models.ValidRoom(req.RoomID) {
			return ErrRoomOutOfRange
		}
	}
	return nil
}
