package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

// RoomOption configures a room fixture.
type RoomOption func(*persistence.Room)

// NewRoom returns a room named "Board Room" with the given id.
func NewRoom(id string, opts ...RoomOption) persistence.Room {
	room := persistence.Room{
		ID:          id,
		Name:        "Board Room",
		Description: "Third floor, seats twelve",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomName overrides the room name.
func WithRoomName(name string) RoomOption {
	return func(r *persistence.Room) { r.Name = name }
}

// ReservationOption configures a reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a one-hour, unapproved, one-time reservation owned by
// "alice" starting at start.
func NewReservation(id, roomID string, start time.Time, opts ...ReservationOption) persistence.Reservation {
	reservation := persistence.Reservation{
		ID:          id,
		RoomID:      roomID,
		Name:        "Team sync",
		Description: "Weekly planning",
		OwnerID:     "alice",
		Start:       start,
		End:         start.Add(time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithDuration sets End relative to Start.
func WithDuration(d time.Duration) ReservationOption {
	return func(r *persistence.Reservation) { r.End = r.Start.Add(d) }
}

// WithOwner overrides the owner.
func WithOwner(ownerID string) ReservationOption {
	return func(r *persistence.Reservation) { r.OwnerID = ownerID }
}

// WithName overrides the reservation name.
func WithName(name string) ReservationOption {
	return func(r *persistence.Reservation) { r.Name = name }
}

// Approved marks the reservation approved.
func Approved() ReservationOption {
	return func(r *persistence.Reservation) { r.Approved = true }
}

// Weekly attaches a weekly rule.
func Weekly(count int) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Recurrence = &recurrence.Rule{Frequency: recurrence.FrequencyWeekly, Count: count}
	}
}

// Monthly attaches a day-of-month rule.
func Monthly(count int) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Recurrence = &recurrence.Rule{Frequency: recurrence.FrequencyMonthly, Count: count}
	}
}

// MonthlyNthWeekday attaches an nth-weekday rule.
func MonthlyNthWeekday(count int, nth ...int) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Recurrence = &recurrence.Rule{Frequency: recurrence.FrequencyMonthlyNthWeekday, NthWeekdays: nth, Count: count}
	}
}

// Seed stores rooms and reservations, failing the test on the first error.
func Seed(tb testing.TB, store persistence.Store, rooms []persistence.Room, reservations ...persistence.Reservation) {
	tb.Helper()
	ctx := context.Background()
	for _, room := range rooms {
		if err := store.CreateRoom(ctx, room); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
	for _, reservation := range reservations {
		if err := store.CreateReservation(ctx, reservation); err != nil {
			tb.Fatalf("seed reservation %s: %v", reservation.ID, err)
		}
	}
}
