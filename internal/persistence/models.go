package persistence

import (
	"time"

	"github.com/example/room-reservations/internal/recurrence"
)

// Room is a bookable room in the catalog.
type Room struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation is a stored booking. A nil Recurrence means the booking happens once.
type Reservation struct {
	ID          string
	RoomID      string
	Name        string
	Description string
	OwnerID     string
	Start       time.Time
	End         time.Time
	Recurrence  *recurrence.Rule
	Approved    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Duration is the length of every occurrence of the reservation.
func (r Reservation) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Recurring reports whether the reservation carries a recurrence rule.
func (r Reservation) Recurring() bool {
	return r.Recurrence != nil
}
