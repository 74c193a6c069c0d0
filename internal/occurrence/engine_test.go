package occurrence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

type stubLister struct {
	byRoom map[string][]persistence.Reservation
	err    error
	calls  int
}

func (s *stubLister) ListReservations(_ context.Context, roomID string) ([]persistence.Reservation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.byRoom[roomID], nil
}

func at(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func weeklyReservation(id string, start time.Time, count int) persistence.Reservation {
	return persistence.Reservation{
		ID:         id,
		RoomID:     "room-1",
		Name:       "Standup",
		OwnerID:    "alice",
		Start:      start,
		End:        start.Add(time.Hour),
		Recurrence: &recurrence.Rule{Frequency: recurrence.FrequencyWeekly, Count: count},
	}
}

func singleReservation(id string, start, end time.Time) persistence.Reservation {
	return persistence.Reservation{ID: id, RoomID: "room-1", Name: "Offsite", OwnerID: "bob", Start: start, End: end, Approved: true}
}

func newEngine(reservations ...persistence.Reservation) (*Engine, *stubLister) {
	lister := &stubLister{byRoom: map[string][]persistence.Reservation{"room-1": reservations}}
	return NewEngine(lister, recurrence.NewExpander(time.UTC, 0), nil), lister
}

func starts(occurrences []Occurrence) []time.Time {
	out := make([]time.Time, len(occurrences))
	for i, occ := range occurrences {
		out[i] = occ.Start
	}
	return out
}

func TestEngineGetOccurrences(t *testing.T) {
	ctx := context.Background()

	t.Run("weekly rule inside window", func(t *testing.T) {
		engine, _ := newEngine(weeklyReservation("res-1", at(4, 9), 3))

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		require.NoError(t, err)

		assert.Equal(t, []time.Time{at(4, 9), at(11, 9), at(18, 9)}, starts(got))
		for _, occ := range got {
			assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
			assert.Equal(t, "res-1", occ.ReservationID)
		}
		assert.Equal(t, "res-1:0", got[0].Key)
		assert.Equal(t, "res-1:2", got[2].Key)
	})

	t.Run("first occurrence equals a sub-second start", func(t *testing.T) {
		start := at(4, 9).Add(500 * time.Millisecond)
		engine, _ := newEngine(weeklyReservation("res-1", start, 3))

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Start.Equal(start), "first start %s, want %s", got[0].Start, start)
		assert.True(t, got[2].Start.Equal(start.AddDate(0, 0, 14)))
		assert.Equal(t, time.Hour, got[0].End.Sub(got[0].Start))
	})

	t.Run("window trims earlier instants but keeps keys stable", func(t *testing.T) {
		engine, _ := newEngine(weeklyReservation("res-1", at(4, 9), 3))

		got, err := engine.GetOccurrences(ctx, "2024-03-12", "2024-03-20", "room-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, at(18, 9), got[0].Start)
		assert.Equal(t, "res-1:2", got[0].Key)
	})

	t.Run("one-time reservation must fit entirely", func(t *testing.T) {
		engine, _ := newEngine(
			singleReservation("inside", at(5, 9), at(5, 17)),
			singleReservation("overnight", at(20, 22), at(21, 2)),
		)

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "inside", got[0].Key)
		assert.Equal(t, ApprovedColor, got[0].Color)
	})

	t.Run("recurring matches on start date only", func(t *testing.T) {
		overnight := weeklyReservation("res-1", at(6, 22), 2)
		overnight.End = overnight.Start.Add(4 * time.Hour)
		engine, _ := newEngine(overnight)

		got, err := engine.GetOccurrences(ctx, "2024-03-13", "2024-03-13", "room-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, at(14, 2), got[0].End)
	})

	t.Run("aggregates in reservation order", func(t *testing.T) {
		engine, _ := newEngine(
			weeklyReservation("later", at(7, 15), 2),
			singleReservation("single", at(2, 9), at(2, 10)),
			weeklyReservation("earlier", at(4, 9), 2),
		)

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-31", "room-1")
		require.NoError(t, err)

		keys := make([]string, len(got))
		for i, occ := range got {
			keys[i] = occ.Key
		}
		assert.Equal(t, []string{"later:0", "later:1", "single", "earlier:0", "earlier:1"}, keys)
	})

	t.Run("unknown room is empty", func(t *testing.T) {
		engine, _ := newEngine(weeklyReservation("res-1", at(4, 9), 3))

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-404")
		require.NoError(t, err)
		assert.Empty(t, got)

		notFound := NewEngine(&stubLister{err: persistence.ErrNotFound}, nil, nil)
		got, err = notFound.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-404")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ceiling bounds every rule", func(t *testing.T) {
		lister := &stubLister{byRoom: map[string][]persistence.Reservation{"room-1": {weeklyReservation("res-1", at(4, 9), 1000)}}}
		engine := NewEngine(lister, recurrence.NewExpander(time.UTC, 5), nil)

		got, err := engine.GetOccurrences(ctx, "2024-01-01", "2026-12-31", "room-1")
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})
}

func TestEngineErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid range", func(t *testing.T) {
		engine, lister := newEngine(weeklyReservation("res-1", at(4, 9), 3))

		for _, bounds := range [][2]string{{"2024-03-20", "2024-03-01"}, {"yesterday", "2024-03-01"}, {"2024-03-01", "2024-13-01"}} {
			_, err := engine.GetOccurrences(ctx, bounds[0], bounds[1], "room-1")
			assert.ErrorIs(t, err, recurrence.ErrInvalidRange, "bounds %v", bounds)
		}
		assert.Zero(t, lister.calls, "persistence must not be queried for an invalid range")
	})

	t.Run("corrupt rule aborts", func(t *testing.T) {
		bad := weeklyReservation("bad", at(4, 9), 3)
		bad.Recurrence.Frequency = "FORTNIGHTLY"
		engine, _ := newEngine(weeklyReservation("ok", at(4, 9), 3), bad)

		got, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		assert.ErrorIs(t, err, recurrence.ErrInvalidRule)
		assert.Nil(t, got)
	})

	t.Run("inverted reservation aborts", func(t *testing.T) {
		engine, _ := newEngine(singleReservation("inverted", at(5, 10), at(5, 9)))

		_, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		assert.ErrorIs(t, err, ErrInvalidReservation)
	})

	t.Run("persistence failure propagates", func(t *testing.T) {
		boom := errors.New("disk on fire")
		engine := NewEngine(&stubLister{err: boom}, nil, nil)

		_, err := engine.GetOccurrences(ctx, "2024-03-01", "2024-03-20", "room-1")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		engine, _ := newEngine(weeklyReservation("res-1", at(4, 9), 3))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := engine.GetOccurrences(cancelled, "2024-03-01", "2024-03-20", "room-1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
