package models

import "time"

// Ticket is one patient's registration for a visit day. A ticket owns one
// assignment per requested specialty; attendance is tracked per assignment,
// never on the ticket itself.
type Ticket struct {
	TicketID    int64        `json:"ticket_id"`
	PatientName string       `json:"patient_name"`
	CreatedAt   time.Time    `json:"created_at"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// Assignment binds a ticket to one (specialty, room) pair. Attended flips to
// true exactly once, when a room claims the assignment, and never reverts.
type Assignment struct {
	AssignmentID int64      `json:"assignment_id"`
	TicketID     int64      `json:"ticket_id"`
	PatientName  string     `json:"patient_name,omitempty"`
	Specialty    string     `json:"specialty"`
	RoomID       int        `json:"room_id"`
	CreatedAt    time.Time  `json:"created_at"`
	Attended     bool       `json:"attended"`
	AttendedAt   *time.Time `json:"attended_at,omitempty"`
}
