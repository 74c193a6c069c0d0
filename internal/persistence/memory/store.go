// Package memory provides a map-backed persistence.Store for tests and for running
// the service without a database file.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

// Store keeps rooms and reservations in memory.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]persistence.Room
	reservations map[string]persistence.Reservation
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:        make(map[string]persistence.Room),
		reservations: make(map[string]persistence.Reservation),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room. Names are unique case-insensitively.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room.ID == "" || strings.TrimSpace(room.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.rooms {
		if strings.EqualFold(existing.Name, room.Name) {
			return fmt.Errorf("memory: room name %q: %w", room.Name, persistence.ErrDuplicate)
		}
	}

	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})

	return rooms, nil
}

// DeleteRoom removes a room and every reservation made for it.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.rooms, id)
	for reservationID, reservation := range s.reservations {
		if reservation.RoomID == id {
			delete(s.reservations, reservationID)
		}
	}
	return nil
}

// --- ReservationRepository implementation ---

// CreateReservation stores a new reservation for an existing room.
func (s *Store) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reservation.ID == "" || !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}
	if reservation.Recurrence != nil {
		if err := reservation.Recurrence.Validate(); err != nil {
			return fmt.Errorf("memory: reservation %s: %w: %w", reservation.ID, persistence.ErrConstraintViolation, err)
		}
	}
	if _, ok := s.reservations[reservation.ID]; ok {
		return fmt.Errorf("memory: reservation %s: %w", reservation.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.rooms[reservation.RoomID]; !ok {
		return fmt.Errorf("memory: room %s: %w", reservation.RoomID, persistence.ErrForeignKeyViolation)
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// ListReservations returns the room's reservations, newest start first.
func (s *Store) ListReservations(ctx context.Context, roomID string) ([]persistence.Reservation, error) {
	return s.list(func(r persistence.Reservation) bool { return r.RoomID == roomID }), nil
}

// ListPendingReservations returns every unapproved reservation, newest start first.
func (s *Store) ListPendingReservations(ctx context.Context) ([]persistence.Reservation, error) {
	return s.list(func(r persistence.Reservation) bool { return !r.Approved }), nil
}

// ApproveReservation marks a reservation approved.
func (s *Store) ApproveReservation(ctx context.Context, id string, approvedAt time.Time) (persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	reservation.Approved = true
	reservation.UpdatedAt = approvedAt
	s.reservations[id] = reservation
	return cloneReservation(reservation), nil
}

// DeleteReservation removes a reservation and its embedded rule.
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *Store) list(match func(persistence.Reservation) bool) []persistence.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if match(reservation) {
			out = append(out, cloneReservation(reservation))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.After(out[j].Start)
	})
	return out
}

// --- Helpers ---

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	if reservation.Recurrence != nil {
		rule := recurrence.Rule{
			Frequency:   reservation.Recurrence.Frequency,
			NthWeekdays: slices.Clone(reservation.Recurrence.NthWeekdays),
			Count:       reservation.Recurrence.Count,
		}
		reservation.Recurrence = &rule
	}
	return reservation
}
