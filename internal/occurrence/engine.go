package occurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

// ErrInvalidReservation is returned for a stored reservation whose end is not after
// its start.
var ErrInvalidReservation = errors.New("occurrence: reservation end must be after start")

// ReservationLister is the persistence collaborator the engine reads from.
type ReservationLister interface {
	ListReservations(ctx context.Context, roomID string) ([]persistence.Reservation, error)
}

// Engine answers occurrence queries. It keeps no per-query state and may be shared
// across goroutines.
type Engine struct {
	reservations ReservationLister
	expander     *recurrence.Expander
	logger       *slog.Logger
}

// NewEngine constructs an engine. A nil expander means UTC with the default cap.
func NewEngine(reservations ReservationLister, expander *recurrence.Expander, logger *slog.Logger) *Engine {
	if expander == nil {
		expander = recurrence.NewExpander(nil, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reservations: reservations, expander: expander, logger: logger}
}

// GetOccurrences parses the YYYY-MM-DD bounds and returns the room's occurrences in
// the inclusive window. Malformed or reversed bounds give a *recurrence.RangeError.
func (e *Engine) GetOccurrences(ctx context.Context, rangeFrom, to, roomID string) ([]Occurrence, error) {
	window, err := recurrence.ParseWindow(rangeFrom, to, e.expander.Location())
	if err != nil {
		return nil, err
	}
	return e.Occurrences(ctx, window, roomID)
}

// Occurrences returns the room's occurrences in window, grouped by reservation in
// the order persistence lists them and ascending within each recurring reservation.
// An unknown room yields an empty result. The first failing reservation aborts the
// query, and cancellation of ctx is checked between reservations.
func (e *Engine) Occurrences(ctx context.Context, window recurrence.Window, roomID string) ([]Occurrence, error) {
	if e == nil || e.reservations == nil {
		return nil, fmt.Errorf("occurrence engine is not configured")
	}

	reservations, err := e.reservations.ListReservations(ctx, roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return []Occurrence{}, nil
		}
		return nil, fmt.Errorf("list reservations for room %s: %w", roomID, err)
	}

	loc := e.expander.Location()
	occurrences := make([]Occurrence, 0)
	for _, reservation := range reservations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !reservation.End.After(reservation.Start) {
			return nil, fmt.Errorf("reservation %s: %w", reservation.ID, ErrInvalidReservation)
		}

		if !reservation.Recurring() {
			if window.MatchesSingle(reservation.Start, reservation.End) {
				occurrences = append(occurrences, Materialize(reservation, reservation.Start.In(loc), 0))
			}
			continue
		}

		seq, err := e.expander.Expand(*reservation.Recurrence, reservation.Start)
		if err != nil {
			return nil, fmt.Errorf("reservation %s: %w", reservation.ID, err)
		}
		for index, instant := range window.Select(seq) {
			occurrences = append(occurrences, Materialize(reservation, instant, index))
		}
	}

	e.loggerFor(ctx).DebugContext(ctx, "occurrences materialized",
		"room_id", roomID,
		"from", window.From.String(),
		"to", window.To.String(),
		"reservations", len(reservations),
		"occurrences", len(occurrences),
	)
	return occurrences, nil
}

func (e *Engine) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return e.logger
}
