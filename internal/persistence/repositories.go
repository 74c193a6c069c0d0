package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ReservationRepository stores reservations together with their embedded rules.
//
// ListReservations returns the room's reservations ordered by start time, newest
// first, and an empty slice for an unknown room.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, roomID string) ([]Reservation, error)
	ListPendingReservations(ctx context.Context) ([]Reservation, error)
	ApproveReservation(ctx context.Context, id string, approvedAt time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the service.
type Store interface {
	RoomRepository
	ReservationRepository
	Ping(ctx context.Context) error
	Close() error
}
