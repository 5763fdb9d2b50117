package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hap/queue-service/internal/models"
	"hap/queue-service/internal/store"
)

// Store keeps tickets in process memory behind a single mutex. It backs
// development and handler tests; the claim-once guarantee of CallNext holds
// because every mutation runs under the lock.
type Store struct {
	mu               sync.Mutex
	tickets          map[int64]*models.Ticket
	assignments      map[int64]*models.Assignment
	specialties      []models.Specialty
	nextTicketID     int64
	nextAssignmentID int64
	loc              *time.Location
	nowFn            func() time.Time
}

type Options struct {
	Location    *time.Location
	Specialties []models.Specialty
	Now         func() time.Time
}

func NewStore(options Options) *Store {
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}
	specialties := options.Specialties
	if specialties == nil {
		specialties = models.DefaultSpecialties
	}
	nowFn := options.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		tickets:          make(map[int64]*models.Ticket),
		assignments:      make(map[int64]*models.Assignment),
		specialties:      specialties,
		nextTicketID:     1,
		nextAssignmentID: 1,
		loc:              loc,
		nowFn:            nowFn,
	}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if err := store.ValidateCreate(input); err != nil {
		return models.Ticket{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.nowFn()
	}

	resolved := make([]store.AssignmentRequest, 0, len(input.Assignments))
	for _, req := range input.Assignments {
		specialty, roomID, ok := s.specialtyRoom(req.Specialty)
		if !ok {
			return models.Ticket{}, store.ErrUnknownSpecialty
		}
		if req.RoomID != 0 {
			roomID = req.RoomID
		}
		resolved = append(resolved, store.AssignmentRequest{Specialty: specialty, RoomID: roomID})
	}

	ticket := &models.Ticket{
		TicketID:    s.nextTicketID,
		PatientName: input.PatientName,
		CreatedAt:   createdAt,
	}
	s.nextTicketID++
	s.tickets[ticket.TicketID] = ticket

	for _, req := range resolved {
		assignment := &models.Assignment{
			AssignmentID: s.nextAssignmentID,
			TicketID:     ticket.TicketID,
			Specialty:    req.Specialty,
			RoomID:       req.RoomID,
			CreatedAt:    createdAt,
		}
		s.nextAssignmentID++
		s.assignments[assignment.AssignmentID] = assignment
	}

	return s.snapshotTicket(ticket.TicketID), nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return models.Ticket{}, false, nil
	}
	return s.snapshotTicket(ticketID), true, nil
}

func (s *Store) ListWaiting(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart, dayEnd := store.DayBounds(day, s.loc)
	var waiting []models.Assignment
	for _, assignment := range s.assignments {
		if assignment.RoomID != roomID || assignment.Attended {
			continue
		}
		if !inWindow(assignment.CreatedAt, dayStart, dayEnd) {
			continue
		}
		waiting = append(waiting, s.withPatientName(*assignment))
	}
	sort.Slice(waiting, func(i, j int) bool {
		if !waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
		}
		return waiting[i].AssignmentID < waiting[j].AssignmentID
	})
	return waiting, nil
}

func (s *Store) ListAttended(ctx context.Context, roomID int, day time.Time) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart, dayEnd := store.DayBounds(day, s.loc)
	var attended []models.Assignment
	for _, assignment := range s.assignments {
		if assignment.RoomID != roomID || !assignment.Attended {
			continue
		}
		if !inWindow(assignment.CreatedAt, dayStart, dayEnd) {
			continue
		}
		attended = append(attended, s.withPatientName(*assignment))
	}
	sort.Slice(attended, func(i, j int) bool {
		iAt, jAt := attended[i].AttendedAt, attended[j].AttendedAt
		if iAt != nil && jAt != nil && !iAt.Equal(*jAt) {
			return iAt.After(*jAt)
		}
		return attended[i].AssignmentID > attended[j].AssignmentID
	})
	return attended, nil
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Assignment, bool, error) {
	if !models.ValidRoom(input.RoomID) {
		return models.Assignment{}, false, store.ErrRoomOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = s.nowFn()
	}
	dayStart, dayEnd := store.DayBounds(calledAt, s.loc)

	var next *models.Assignment
	for _, assignment := range s.assignments {
		if assignment.RoomID != input.RoomID || assignment.Attended {
			continue
		}
		if !inWindow(assignment.CreatedAt, dayStart, dayEnd) {
			continue
		}
		if next == nil || earlier(assignment, next) {
			next = assignment
		}
	}
	if next == nil {
		return models.Assignment{}, false, nil
	}

	next.Attended = true
	at := calledAt
	next.AttendedAt = &at
	return s.withPatientName(*next), true, nil
}

func (s *Store) LastAttended(ctx context.Context, roomID int, day time.Time) (models.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart, dayEnd := store.DayBounds(day, s.loc)
	var last *models.Assignment
	for _, assignment := range s.assignments {
		if assignment.RoomID != roomID || !assignment.Attended {
			continue
		}
		if !inWindow(assignment.CreatedAt, dayStart, dayEnd) {
			continue
		}
		if last == nil || attendedLater(assignment, last) {
			last = assignment
		}
	}
	if last == nil {
		return models.Assignment{}, false, nil
	}
	return s.withPatientName(*last), true, nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[input.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}

	if input.AssignmentID != 0 {
		assignment, ok := s.assignments[input.AssignmentID]
		if !ok || assignment.TicketID != input.TicketID {
			return models.Ticket{}, store.ErrAssignmentNotFound
		}
		if assignment.Attended && (input.Specialty != "" || input.RoomID != 0) {
			return models.Ticket{}, store.ErrAlreadyAttended
		}
		if input.Specialty != "" {
			specialty, _, ok := s.specialtyRoom(input.Specialty)
			if !ok {
				return models.Ticket{}, store.ErrUnknownSpecialty
			}
			assignment.Specialty = specialty
		}
		if input.RoomID != 0 {
			assignment.RoomID = input.RoomID
		}
	}

	if input.PatientName != "" {
		ticket.PatientName = input.PatientName
	}

	return s.snapshotTicket(ticket.TicketID), nil
}

func (s *Store) HasPendingTicket(ctx context.Context, patientName string, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dayStart, dayEnd := store.DayBounds(day, s.loc)
	for _, assignment := range s.assignments {
		if assignment.Attended {
			continue
		}
		if !inWindow(assignment.CreatedAt, dayStart, dayEnd) {
			continue
		}
		ticket, ok := s.tickets[assignment.TicketID]
		if !ok {
			continue
		}
		if strings.EqualFold(ticket.PatientName, patientName) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListSpecialties(ctx context.Context) ([]models.Specialty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	specialties := make([]models.Specialty, len(s.specialties))
	copy(specialties, s.specialties)
	sort.Slice(specialties, func(i, j int) bool {
		return specialties[i].RoomID < specialties[j].RoomID
	})
	return specialties, nil
}

// specialtyRoom matches case-insensitively and returns the configured name,
// so stored assignments carry the same canonical casing as the postgres
// backend.
func (s *Store) specialtyRoom(name string) (string, int, bool) {
	for _, specialty := range s.specialties {
		if strings.EqualFold(specialty.Name, name) {
			return specialty.Name, specialty.RoomID, true
		}
	}
	return "", 0, false
}

func (s *Store) snapshotTicket(ticketID int64) models.Ticket {
	ticket := *s.tickets[ticketID]
	ticket.Assignments = nil
	var ids []int64
	for id, assignment := range s.assignments {
		if assignment.TicketID == ticketID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		assignment := *s.assignments[id]
		assignment.PatientName = ticket.PatientName
		ticket.Assignments = append(ticket.Assignments, assignment)
	}
	return ticket
}

func (s *Store) withPatientName(assignment models.Assignment) models.Assignment {
	if ticket, ok := s.tickets[assignment.TicketID]; ok {
		assignment.PatientName = ticket.PatientName
	}
	return assignment
}

func inWindow(at, start, end time.Time) bool {
	return !at.Before(start) && at.Before(end)
}

func earlier(a, b *models.Assignment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.AssignmentID < b.AssignmentID
}

func attendedLater(a, b *models.Assignment) bool {
	if a.AttendedAt != nil && b.AttendedAt != nil && !a.AttendedAt.Equal(*b.AttendedAt) {
		return a.AttendedAt.After(*b.AttendedAt)
	}
	return a.AssignmentID > b.AssignmentID
}
