package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hap/queue-service/internal/models"
	"hap/queue-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

type Options struct {
	// Location defines the calendar-day boundary for queue scoping.
	Location *time.Location
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}
	return &Store{pool: pool, loc: loc}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if err := store.ValidateCreate(input); err != nil {
		return models.Ticket{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	resolved := make([]store.AssignmentRequest, 0, len(input.Assignments))
	for _, req := range input.Assignments {
		var specialty string
		var roomID int
		specialty, roomID, err = lookupSpecialtyRoom(ctx, tx, req.Specialty)
		if err != nil {
			return models.Ticket{}, err
		}
		if req.RoomID != 0 {
			roomID = req.RoomID
		}
		resolved = append(resolved, store.AssignmentRequest{Specialty: specialty, RoomID: roomID})
	}

	var ticket models.Ticket
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (patient_name, created_at)
		VALUES ($1, $2)
		RETURNING ticket_id, patient_name, created_at
	`, input.PatientName, createdAt)
	if err = row.Scan(&ticket.TicketID, &ticket.PatientName, &ticket.CreatedAt); err != nil {
		return models.Ticket{}, err
	}

	for _, req := range resolved {
		var assignment models.Assignment
		row := tx.QueryRow(ctx, `
			INSERT INTO assignments (ticket_id, specialty, room_id, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING assignment_id, ticket_id, specialty, room_id, created_at, attended
		`, ticket.TicketID, req.Specialty, req.RoomID, createdAt)
		if err = row.Scan(&assignment.AssignmentID, &assignment.TicketID, &assignment.Specialty, &assignment.RoomID, &assignment.CreatedAt, &assignment.Attended); err != nil {
			return models.Ticket{}, err
		}
		assignment.PatientName = ticket.PatientName
		ticket.Assignments = append(ticket.Assignments, assignment)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}

	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, bool, error) {
	var ticket models.Ticket
	row := s.pool.QueryRow(ctx, `
		SELECT ticket_id, patient_name, created_at
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if err := row.Scan(&ticket.TicketID, &ticket.PatientName, &ticket.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT assignment_id, ticket_id, specialty, room_id, created_at, attended, attended_at
		FROM assignments
		WHERE ticket_id = $1
		ORDER BY assignment_id ASC
	`, ticketID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var assignment models.Assignment
		var attendedAtNull sql.NullTime
		if err := rows.Scan(&assignment.AssignmentID, &assignment.TicketID, &assignment.Specialty, &assignment.RoomID, &assignment.CreatedAt, &assignment.Attended, &attendedAtNull); err != nil {
			return models.Ticket{}, false, err
		}
		assignment.AttendedAt = nullTimePtr(attendedAtNull)
		assignment.PatientName = ticket.PatientName
		ticket.Assignments = append(ticket.Assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ListWaiting(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error) {
	dayStart, dayEnd := store.DayBounds(day, s.loc)
	return s.listAssignments(ctx, `
		SELECT a.assignment_id, a.ticket_id, t.patient_name, a.specialty, a.room_id, a.created_at, a.attended, a.attended_at
		FROM assignments a
		JOIN tickets t ON t.ticket_id = a.ticket_id
		WHERE a.room_id = $1 AND a.attended = FALSE
			AND a.created_at >= $2 AND a.created_at < $3
		ORDER BY a.created_at ASC, a.assignment_id ASC
	`, roomID, dayStart, dayEnd)
}

func (s *Store) ListAttended(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error) {
	dayStart, dayEnd := store.DayBounds(day, s.loc)
	return s.listAssignments(ctx, `
		SELECT a.assignment_id, a.ticket_id, t.patient_name, a.specialty, a.room_id, a.created_at, a.attended, a.attended_at
		FROM assignments a
		JOIN tickets t ON t.ticket_id = a.ticket_id
		WHERE a.room_id = $1 AND a.attended = TRUE
			AND a.created_at >= $2 AND a.created_at < $3
		ORDER BY a.attended_at DESC, a.assignment_id DESC
	`, roomID, dayStart, dayEnd)
}

func (s *Store) listAssignments(ctx context.Context, query string, args ...interface{}) ([]models.Assignment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		var assignment models.Assignment
		var attendedAtNull sql.NullTime
		if err := rows.Scan(&assignment.AssignmentID, &assignment.TicketID, &assignment.PatientName, &assignment.Specialty, &assignment.RoomID, &assignment.CreatedAt, &assignment.Attended, &attendedAtNull); err != nil {
			return nil, err
		}
		assignment.AttendedAt = nullTimePtr(attendedAtNull)
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// CallNext claims the oldest waiting assignment for a room within today's
// bounds. The locking clause makes the claim non-blocking: a row already
// locked by a concurrent call is skipped, so two rooms can never attend the
// same assignment and never wait on each other.
func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Assignment, bool, error) {
	if !models.ValidRoom(input.RoomID) {
		return models.Assignment{}, false, store.ErrRoomOutOfRange
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Assignment{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	dayStart, dayEnd := store.DayBounds(calledAt, s.loc)

	var assignment models.Assignment
	var attendedAtNull sql.NullTime
	row := tx.QueryRow(ctx, `
		WITH next_assignment AS (
			SELECT assignment_id
			FROM assignments
			WHERE room_id = $1 AND attended = FALSE
				AND created_at >= $2 AND created_at < $3
			ORDER BY created_at ASC, assignment_id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE assignments
		SET attended = TRUE,
			attended_at = $4
		FROM next_assignment, tickets t
		WHERE assignments.assignment_id = next_assignment.assignment_id
			AND t.ticket_id = assignments.ticket_id
		RETURNING assignments.assignment_id, assignments.ticket_id, t.patient_name, assignments.specialty, assignments.room_id, assignments.created_at, assignments.attended, assignments.attended_at
	`, input.RoomID, dayStart, dayEnd, calledAt)
	if err = row.Scan(&assignment.AssignmentID, &assignment.TicketID, &assignment.PatientName, &assignment.Specialty, &assignment.RoomID, &assignment.CreatedAt, &assignment.Attended, &attendedAtNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.Commit(ctx)
			if err != nil {
				return models.Assignment{}, false, err
			}
			return models.Assignment{}, false, nil
		}
		return models.Assignment{}, false, err
	}
	assignment.AttendedAt = nullTimePtr(attendedAtNull)

	if err = tx.Commit(ctx); err != nil {
		return models.Assignment{}, false, err
	}

	return assignment, true, nil
}

func (s *Store) LastAttended(ctx context.Context, roomID int, day time.Time) (models.Assignment, bool, error) {
	dayStart, dayEnd := store.DayBounds(day, s.loc)
	var assignment models.Assignment
	var attendedAtNull sql.NullTime
	row := s.pool.QueryRow(ctx, `
		SELECT a.assignment_id, a.ticket_id, t.patient_name, a.specialty, a.room_id, a.created_at, a.attended, a.attended_at
		FROM assignments a
		JOIN tickets t ON t.ticket_id = a.ticket_id
		WHERE a.room_id = $1 AND a.attended = TRUE
			AND a.created_at >= $2 AND a.created_at < $3
		ORDER BY a.attended_at DESC, a.assignment_id DESC
		LIMIT 1
	`, roomID, dayStart, dayEnd)
	if err := row.Scan(&assignment.AssignmentID, &assignment.TicketID, &assignment.PatientName, &assignment.Specialty, &assignment.RoomID, &assignment.CreatedAt, &assignment.Attended, &attendedAtNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Assignment{}, false, nil
		}
		return models.Assignment{}, false, err
	}
	assignment.AttendedAt = nullTimePtr(attendedAtNull)
	return assignment, true, nil
}

func (s *Store) UpdateTicket(ctx context.Context, input store.UpdateTicketInput) (models.Ticket, error) {
	if input.PatientName != "" {
		if ok, _ := models.ValidatePatientName(input.PatientName); !ok {
			return models.Ticket{}, store.ErrInvalidName
		}
	}
	if input.RoomID != 0 && !models.ValidRoom(input.RoomID) {
		return models.Ticket{}, store.ErrRoomOutOfRange
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.PatientName != "" {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, `
			UPDATE tickets
			SET patient_name = $1
			WHERE ticket_id = $2
		`, input.PatientName, input.TicketID)
		if err != nil {
			return models.Ticket{}, err
		}
		if tag.RowsAffected() == 0 {
			err = store.ErrTicketNotFound
			return models.Ticket{}, err
		}
	}

	if input.AssignmentID != 0 {
		var attended bool
		row := tx.QueryRow(ctx, `
			SELECT attended
			FROM assignments
			WHERE assignment_id = $1 AND ticket_id = $2
		`, input.AssignmentID, input.TicketID)
		if err = row.Scan(&attended); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = store.ErrAssignmentNotFound
			}
			return models.Ticket{}, err
		}
		if attended && (input.Specialty != "" || input.RoomID != 0) {
			err = store.ErrAlreadyAttended
			return models.Ticket{}, err
		}

		if input.Specialty != "" {
			input.Specialty, _, err = lookupSpecialtyRoom(ctx, tx, input.Specialty)
			if err != nil {
				return models.Ticket{}, err
			}
		}

		updateQuery := "UPDATE assignments SET"
		args := []interface{}{}
		argPos := 1
		if input.Specialty != "" {
			updateQuery += fmt.Sprintf(" specialty = $%d", argPos)
			args = append(args, input.Specialty)
			argPos++
		}
		if input.RoomID != 0 {
			if len(args) > 0 {
				updateQuery += ","
			}
			updateQuery += fmt.Sprintf(" room_id = $%d", argPos)
			args = append(args, input.RoomID)
			argPos++
		}
		if len(args) > 0 {
			updateQuery += fmt.Sprintf(" WHERE assignment_id = $%d AND ticket_id = $%d", argPos, argPos+1)
			args = append(args, input.AssignmentID, input.TicketID)
			var tag pgconn.CommandTag
			tag, err = tx.Exec(ctx, updateQuery, args...)
			if err != nil {
				return models.Ticket{}, err
			}
			if tag.RowsAffected() == 0 {
				err = store.ErrAssignmentNotFound
				return models.Ticket{}, err
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}

	ticket, found, err := s.GetTicket(ctx, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !found {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

// HasPendingTicket is the soft duplicate guard used at registration: a
// case-insensitive name match over today's unattended assignments. It is a
// pre-check, not a uniqueness constraint.
func (s *Store) HasPendingTicket(ctx context.Context, patientName string, day time.Time) (bool, error) {
	dayStart, dayEnd := store.DayBounds(day, s.loc)
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM assignments a
			JOIN tickets t ON t.ticket_id = a.ticket_id
			WHERE LOWER(t.patient_name) = LOWER($1)
				AND a.attended = FALSE
				AND a.created_at >= $2 AND a.created_at < $3
		)
	`, patientName, dayStart, dayEnd)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListSpecialties(ctx context.Context) ([]models.Specialty, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, room_id
		FROM specialties
		ORDER BY room_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specialties []models.Specialty
	for rows.Next() {
		var specialty models.Specialty
		if err := rows.Scan(&specialty.Name, &specialty.RoomID); err != nil {
			return nil, err
		}
		specialties = append(specialties, specialty)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return specialties, nil
}

// lookupSpecialtyRoom matches case-insensitively but returns the seeded
// name, so assignment rows always carry the canonical casing that the
// foreign key to specialties requires.
func lookupSpecialtyRoom(ctx context.Context, tx pgx.Tx, specialty string) (string, int, error) {
	var name string
	var roomID int
	row := tx.QueryRow(ctx, `
		SELECT name, room_id
		FROM specialties
		WHERE LOWER(name) = LOWER($1)
	`, specialty)
	if err := row.Scan(&name, &roomID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, store.ErrUnknownSpecialty
		}
		return "", 0, err
	}
	return name, roomID, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}
