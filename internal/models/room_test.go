package models

import "testing"

func TestValidRoom(t *testing.T) {
	for id := 1; id <= RoomCount; id++ {
		if !ValidRoom(id) {
			t.Fatalf("room %d should be valid", id)
		}
	}
	for _, id := range []int{0, -1, RoomCount + 1, 100} {
		if ValidRoom(id) {
			t.Fatalf("room %d should be invalid", id)
		}
	}
}

func TestDefaultSpecialtiesCoverAllRooms(t *testing.T) {
	if len(DefaultSpecialties) != RoomCount {
		t.Fatalf("expected %d specialties, got %d", RoomCount, len(DefaultSpecialties))
	}
	seen := map[int]string{}
	for _, specialty := range DefaultSpecialties {
		if !ValidRoom(specialty.RoomID) {
			t.Fatalf("specialty %q bound to invalid room %d", specialty.Name, specialty.RoomID)
		}
		if prev, ok := seen[specialty.RoomID]; ok {
			t.Fatalf("room %d bound twice: %q and %q", specialty.RoomID, prev, specialty.Name)
		}
		seen[specialty.RoomID] = specialty.Name
	}
}

func TestSuggestedRoom(t *testing.T) {
	if room, ok := SuggestedRoom("pediatría"); !ok || room != 4 {
		t.Fatalf("SuggestedRoom(pediatría) = %d, %v", room, ok)
	}
	if _, ok := SuggestedRoom("Astrología"); ok {
		t.Fatal("unknown specialty should not suggest a room")
	}
}

func TestCallMessage(t *testing.T) {
	got := CallMessage("Maria Quispe", 4)
	want := "Paciente Maria Quispe, favor pasar al consultorio 4"
	if got != want {
		t.Fatalf("CallMessage = %q, want %q", got, want)
	}
}
