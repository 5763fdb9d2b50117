package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hap/queue-service/internal/announce"
	"hap/queue-service/internal/feed"
	"hap/queue-service/internal/models"
	"hap/queue-service/internal/store"
)

type Handler struct {
	store     store.TicketStore
	announcer *announce.Announcer
	feed      feed.Feed
	nowFn     func() time.Time
}

type Options struct {
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewHandler(ticketStore store.TicketStore, announcer *announce.Announcer, callFeed feed.Feed, options Options) *Handler {
	nowFn := options.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Handler{
		store:     ticketStore,
		announcer: announcer,
		feed:      callFeed,
		nowFn:     nowFn,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleCreateTicket)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubtree)
	mux.HandleFunc("/api/rooms/", h.handleRoomSubtree)
	mux.HandleFunc("/api/feed/last", h.handleFeedLast)
	mux.HandleFunc("/api/specialties", h.handleSpecialties)
	return mux
}

type assignmentRequest struct {
	Specialty string `json:"specialty"`
	RoomID    int    `json:"room_id"`
}

type createTicketRequest struct {
	PatientName string              `json:"patient_name"`
	Assignments []assignmentRequest `json:"assignments"`
	Force       bool                `json:"force"`
}

type updateTicketRequest struct {
	PatientName  string `json:"patient_name"`
	AssignmentID int64  `json:"assignment_id"`
	Specialty    string `json:"specialty"`
	RoomID       int    `json:"room_id"`
}

type callResponse struct {
	Assignment models.Assignment `json:"assignment"`
	Call       models.CallRecord `json:"call"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.PatientName = strings.TrimSpace(req.PatientName)
	if ok, reason := models.ValidatePatientName(req.PatientName); !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_name", reason)
		return
	}
	if len(req.Assignments) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "at least one assignment is required")
		return
	}

	now := h.nowFn()

	if !req.Force {
		pending, err := h.store.HasPendingTicket(r.Context(), req.PatientName, now)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, r, status, code, msg)
			return
		}
		if pending {
			writeError(w, r, http.StatusConflict, "duplicate_pending", "patient already has a pending ticket today")
			return
		}
	}

	input := store.CreateTicketInput{
		PatientName: req.PatientName,
		CreatedAt:   now,
	}
	for _, a := range req.Assignments {
		input.Assignments = append(input.Assignments, store.AssignmentRequest{
			Specialty: strings.TrimSpace(a.Specialty),
			RoomID:    a.RoomID,
		})
	}

	ticket, err := h.store.CreateTicket(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "update":
		h.handleUpdateTicket(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticketID, ok := parseID(w, r, rawID, "ticket_id")
	if !ok {
		return
	}

	ticket, found, err := h.store.GetTicket(r.Context(), ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "ticket_not_found", "ticket not found")
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleUpdateTicket(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticketID, ok := parseID(w, r, rawID, "ticket_id")
	if !ok {
		return
	}

	var req updateTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.PatientName = strings.TrimSpace(req.PatientName)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if req.PatientName == "" && req.AssignmentID == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "nothing to update")
		return
	}
	if req.AssignmentID == 0 && (req.Specialty != "" || req.RoomID != 0) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "assignment_id is required to change specialty or room")
		return
	}

	ticket, err := h.store.UpdateTicket(r.Context(), store.UpdateTicketInput{
		TicketID:     ticketID,
		PatientName:  req.PatientName,
		AssignmentID: req.AssignmentID,
		Specialty:    req.Specialty,
		RoomID:       req.RoomID,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleRoomSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	roomID, ok := parseRoom(w, r, parts[0])
	if !ok {
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "queue":
		h.handleRoomQueue(w, r, roomID)
	case len(parts) == 2 && parts[1] == "history":
		h.handleRoomHistory(w, r, roomID)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "call-next":
		h.handleCallNext(w, r, roomID)
	case len(parts) == 3 && parts[1] == "actions" && parts[2] == "recall":
		h.handleRecall(w, r, roomID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRoomQueue(w http.ResponseWriter, r *http.Request, roomID int) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	waiting, err := h.store.ListWaiting(r.Context(), roomID, h.nowFn())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if waiting == nil {
		waiting = []models.Assignment{}
	}
	writeJSON(w, http.StatusOK, waiting)
}

func (h *Handler) handleRoomHistory(w http.ResponseWriter, r *http.Request, roomID int) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	attended, err := h.store.ListAttended(r.Context(), roomID, h.nowFn())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if attended == nil {
		attended = []models.Assignment{}
	}
	writeJSON(w, http.StatusOK, attended)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request, roomID int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	assignment, found, err := h.store.CallNext(r.Context(), store.CallNextInput{
		RoomID:   roomID,
		CalledAt: h.nowFn(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if !found {
		writeError(w, r, http.StatusConflict, "queue_empty", "no patients waiting for this room")
		return
	}
	callsTotal.Add(1)

	record, err := h.announcer.Call(r.Context(), assignment)
	if err != nil {
		// The claim already committed; report the assignment anyway so the
		// room knows who to attend even if the display misses the call.
		log.Printf("feed publish failed after claim: assignment=%d room=%d err=%v", assignment.AssignmentID, assignment.RoomID, err)
		record = models.CallRecord{}
	}

	writeJSON(w, http.StatusOK, callResponse{Assignment: assignment, Call: record})
}

func (h *Handler) handleRecall(w http.ResponseWriter, r *http.Request, roomID int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	assignment, found, err := h.store.LastAttended(r.Context(), roomID, h.nowFn())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if !found {
		writeError(w, r, http.StatusConflict, "no_recent_call", "no patient has been called by this room today")
		return
	}

	record, err := h.announcer.Recall(r.Context(), assignment)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, callResponse{Assignment: assignment, Call: record})
}

func (h *Handler) handleFeedLast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	record, present, err := h.feed.Current(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}
	if !present {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleSpecialties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	specialties, err := h.store.ListSpecialties(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, r, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, specialties)
}

func parseID(w http.ResponseWriter, r *http.Request, raw, field string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", field+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseRoom(w http.ResponseWriter, r *http.Request, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "room_id must be an integer")
		return 0, false
	}
	if !models.ValidRoom(id) {
		writeError(w, r, http.StatusBadRequest, "room_out_of_range", "room_id out of range")
		return 0, false
	}
	return id, true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name", "invalid patient name"
	case errors.Is(err, store.ErrNoAssignments):
		return http.StatusBadRequest, "invalid_request", "at least one assignment is required"
	case errors.Is(err, store.ErrUnknownSpecialty):
		return http.StatusNotFound, "specialty_not_found", "specialty not found"
	case errors.Is(err, store.ErrRoomOutOfRange):
		return http.StatusBadRequest, "room_out_of_range", "room_id out of range"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrAssignmentNotFound):
		return http.StatusNotFound, "assignment_not_found", "assignment not found"
	case errors.Is(err, store.ErrAlreadyAttended):
		return http.StatusConflict, "already_attended", "assignment already attended"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: r.Header.Get("X-Request-ID"),
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
