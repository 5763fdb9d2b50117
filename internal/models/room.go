package models

import "strings"

// RoomCount is the number of consulting rooms in the building. Room ids are
// 1-based and dense; there is no room registry beyond the specialty seed.
const RoomCount = 14

// Specialty names a medical specialty and the room that usually serves it.
// The room is a suggestion for the admission desk: registration may bind any
// specialty to any room.
type Specialty struct {
	Name   string `json:"name"`
	RoomID int    `json:"room_id"`
}

// DefaultSpecialties is the hospital's fixed specialty-to-room configuration.
var DefaultSpecialties = []Specialty{
	{Name: "Traumatología", RoomID: 1},
	{Name: "Internista", RoomID: 2},
	{Name: "Cirugía", RoomID: 3},
	{Name: "Pediatría", RoomID: 4},
	{Name: "Ginecología", RoomID: 5},
	{Name: "Neurología", RoomID: 6},
	{Name: "Urólogo", RoomID: 7},
	{Name: "Cardiología", RoomID: 8},
	{Name: "Radiología", RoomID: 9},
	{Name: "Medicina", RoomID: 10},
	{Name: "Obstetricia 1", RoomID: 11},
	{Name: "Obstetricia 2", RoomID: 12},
	{Name: "Psicología", RoomID: 13},
	{Name: "Dental", RoomID: 14},
}

// ValidRoom reports whether id falls in the building's room range.
func ValidRoom(id int) bool {
	return id >= 1 && id <= RoomCount
}

// SuggestedRoom returns the room that usually serves a specialty, matched
// case-insensitively against the default configuration.
func SuggestedRoom(specialty string) (int, bool) {
	for _, s := range DefaultSpecialties {
		if strings.EqualFold(s.Name, specialty) {
			return s.RoomID, true
		}
	}
	return 0, false
}
