package models

import (
	"fmt"
	"time"
)

const (
	CallNormal = "normal"
	CallRecall = "recall"
)

// CallRecord is the announcement produced when a room calls or recalls a
// patient. Displays poll the change feed for the latest record; the core
// never renders or speaks it.
type CallRecord struct {
	Message  string    `json:"message"`
	Kind     string    `json:"kind"`
	RoomID   int       `json:"room_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// CallMessage formats the waiting-room announcement for a patient.
func CallMessage(patientName string, roomID int) string {
	return fmt.Sprintf("Paciente %s, favor pasar al consultorio %d", patientName, roomID)
}
