package application

import (
	"time"

	"github.com/example/room-reservations/internal/occurrence"
	"github.com/example/room-reservations/internal/persistence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Authenticated reports whether the principal carries a user id.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Room and Reservation are the persisted records; services hand them out unchanged.
type (
	Room        = persistence.Room
	Reservation = persistence.Reservation
	Occurrence  = occurrence.Occurrence
)

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name        string
	Description string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// RecurrenceInput is the optional rule attached to a new reservation. A nil Count
// stores the configured cap.
type RecurrenceInput struct {
	Frequency   string
	NthWeekdays []int
	Count       *int
}

// ReservationInput captures caller provided reservation fields.
type ReservationInput struct {
	RoomID      string
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	Recurrence  *RecurrenceInput
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// ListOccurrencesParams identifies an occurrence query. From and To are YYYY-MM-DD.
type ListOccurrencesParams struct {
	RoomID string
	From   string
	To     string
}

// RoomOccurrences is a room together with its occurrences in a window.
type RoomOccurrences struct {
	Room        Room
	Occurrences []Occurrence
}

// PendingNotice is what approvers are told about a new unapproved reservation.
type PendingNotice struct {
	Reservation Reservation
	Room        Room
}
