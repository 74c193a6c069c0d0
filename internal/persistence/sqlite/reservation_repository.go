package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

const reservationColumns = `
	id, room_id, name, description, owner_id, start_time, end_time,
	recurrence_frequency, recurrence_nth_weekdays, recurrence_count,
	approved, created_at, updated_at`

// ReservationRepository implements persistence.ReservationRepository using SQLite.
// Recurrence rules live in typed columns of the reservation row.
type ReservationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateReservation inserts a reservation and its rule in one row.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}

	var (
		frequency sql.NullString
		nth       sql.NullString
		count     sql.NullInt64
	)
	if rule := reservation.Recurrence; rule != nil {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
		frequency = sql.NullString{String: string(rule.Frequency), Valid: true}
		if len(rule.NthWeekdays) > 0 {
			nth = sql.NullString{String: recurrence.FormatNthWeekdays(rule.NthWeekdays), Valid: true}
		}
		count = sql.NullInt64{Int64: int64(rule.Count), Valid: true}
	}

	const query = `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query,
			reservation.ID,
			reservation.RoomID,
			reservation.Name,
			nullableString(reservation.Description),
			reservation.OwnerID,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			frequency,
			nth,
			count,
			reservation.Approved,
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		return err
	})
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	var reservation persistence.Reservation
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
		var err error
		reservation, err = scanReservation(tx.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// ListReservations returns a room's reservations, newest start first.
func (r *ReservationRepository) ListReservations(ctx context.Context, roomID string) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = ?
		ORDER BY start_time DESC, id ASC`
	return r.list(ctx, query, roomID)
}

// ListPendingReservations returns every unapproved reservation, newest start first.
func (r *ReservationRepository) ListPendingReservations(ctx context.Context) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE approved = 0
		ORDER BY start_time DESC, id ASC`
	return r.list(ctx, query)
}

// ApproveReservation marks a reservation approved and returns the updated row.
func (r *ReservationRepository) ApproveReservation(ctx context.Context, id string, approvedAt time.Time) (persistence.Reservation, error) {
	var approved persistence.Reservation
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE reservations SET approved = 1, updated_at = ? WHERE id = ?`,
			formatTime(approvedAt), id,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
		approved, err = scanReservation(tx.QueryRowContext(ctx, query, id))
		return r.mapper.MapError(err)
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return approved, nil
}

// DeleteReservation removes a reservation together with its embedded rule.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// list reads inside one read-only transaction so a room's reservations come from a
// single snapshot.
func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	reservations := make([]persistence.Reservation, 0)
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return r.mapper.MapError(err)
		}
		defer rows.Close()

		for rows.Next() {
			reservation, err := scanReservation(rows)
			if err != nil {
				return err
			}
			reservations = append(reservations, reservation)
		}
		return r.mapper.MapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation              persistence.Reservation
		description              sql.NullString
		startStr, endStr         string
		frequency, nth           sql.NullString
		count                    sql.NullInt64
		createdAtStr, updatedStr string
	)

	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.Name,
		&description,
		&reservation.OwnerID,
		&startStr,
		&endStr,
		&frequency,
		&nth,
		&count,
		&reservation.Approved,
		&createdAtStr,
		&updatedStr,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Description = description.String

	for _, field := range []struct {
		name  string
		value string
		dest  *time.Time
	}{
		{"start_time", startStr, &reservation.Start},
		{"end_time", endStr, &reservation.End},
		{"created_at", createdAtStr, &reservation.CreatedAt},
		{"updated_at", updatedStr, &reservation.UpdatedAt},
	} {
		if *field.dest, err = parseTime(field.value); err != nil {
			return persistence.Reservation{}, fmt.Errorf("failed to parse %s: %w", field.name, err)
		}
	}

	if frequency.Valid {
		values, err := recurrence.ParseNthWeekdays(nth.String)
		if err != nil {
			return persistence.Reservation{}, fmt.Errorf("reservation %s: %w", reservation.ID, err)
		}
		c := int(count.Int64)
		rule, err := recurrence.NewRule(frequency.String, values, &c)
		if err != nil {
			return persistence.Reservation{}, fmt.Errorf("reservation %s: %w", reservation.ID, err)
		}
		reservation.Recurrence = &rule
	}

	return reservation, nil
}
