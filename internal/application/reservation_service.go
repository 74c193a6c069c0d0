package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

const (
	maxReservationNameLength        = 255
	maxReservationDescriptionLength = 1024
)

// OccurrenceQuerier answers occurrence feed queries.
type OccurrenceQuerier interface {
	GetOccurrences(ctx context.Context, rangeFrom, to, roomID string) ([]Occurrence, error)
}

// Notifier tells approvers about reservations waiting for approval.
type Notifier interface {
	NotifyPendingReservation(ctx context.Context, notice PendingNotice) error
}

// ReservationService orchestrates reservation commands and occurrence queries.
type ReservationService struct {
	rooms        persistence.RoomRepository
	reservations persistence.ReservationRepository
	occurrences  OccurrenceQuerier
	notifier     Notifier
	defaultCount int
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService constructs a reservation service. notifier may be nil.
// defaultCount is stored on rules created without a count; values <= 0 mean
// recurrence.DefaultCount.
func NewReservationService(
	rooms persistence.RoomRepository,
	reservations persistence.ReservationRepository,
	occurrences OccurrenceQuerier,
	notifier Notifier,
	defaultCount int,
	idGenerator func() string,
	now func() time.Time,
) *ReservationService {
	return NewReservationServiceWithLogger(rooms, reservations, occurrences, notifier, defaultCount, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(
	rooms persistence.RoomRepository,
	reservations persistence.ReservationRepository,
	occurrences OccurrenceQuerier,
	notifier Notifier,
	defaultCount int,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if defaultCount <= 0 {
		defaultCount = recurrence.DefaultCount
	}
	return &ReservationService{
		rooms:        rooms,
		reservations: reservations,
		occurrences:  occurrences,
		notifier:     notifier,
		defaultCount: defaultCount,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates input and stores a new, unapproved reservation. When a
// notifier is configured approvers are told about it; a delivery failure is logged
// and does not fail the command.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID, "recurring", reservation.Recurring()).InfoContext(ctx, "reservation created")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}
	if s.rooms == nil || s.reservations == nil {
		err = fmt.Errorf("reservation repositories not configured")
		return
	}

	rule, vErr := s.validateReservationInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, params.Input.RoomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = newValidationError("room_id", "room does not exist")
		}
		return
	}

	now := s.now()
	reservation = Reservation{
		ID:          s.idGenerator(),
		RoomID:      room.ID,
		Name:        strings.TrimSpace(params.Input.Name),
		Description: strings.TrimSpace(params.Input.Description),
		OwnerID:     params.Principal.UserID,
		Start:       params.Input.Start,
		End:         params.Input.End,
		Recurrence:  rule,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.reservations.CreateReservation(ctx, reservation); err != nil {
		err = mapReservationRepoError(err)
		reservation = Reservation{}
		return
	}

	if s.notifier != nil {
		if nErr := s.notifier.NotifyPendingReservation(ctx, PendingNotice{Reservation: reservation, Room: room}); nErr != nil {
			logger.WarnContext(ctx, "failed to notify approvers", "reservation_id", reservation.ID, "error", nErr)
		}
	}
	return
}

// ApproveReservation marks a reservation approved. Only administrators may approve,
// and approving twice is not an error.
func (s *ReservationService) ApproveReservation(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ApproveReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation approved")
	}()

	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}
	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	reservation, err = s.reservations.ApproveReservation(ctx, reservationID, s.now())
	err = mapReservationRepoError(err)
	return
}

// DeleteReservation removes a reservation and its rule. The owner or an
// administrator may delete.
func (s *ReservationService) DeleteReservation(ctx context.Context, principal Principal, reservationID string) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation deleted")
	}()

	if !principal.Authenticated() {
		return ErrUnauthenticated
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return mapReservationRepoError(err)
	}
	if existing.OwnerID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}

	return mapReservationRepoError(s.reservations.DeleteReservation(ctx, reservationID))
}

// GetReservation returns a stored reservation.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID string) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return Reservation{}, ErrNotFound
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	return reservation, mapReservationRepoError(err)
}

// ListPendingReservations returns every reservation still waiting for approval.
func (s *ReservationService) ListPendingReservations(ctx context.Context) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return []Reservation{}, nil
	}
	return s.reservations.ListPendingReservations(ctx)
}

// ListOccurrences returns the occurrences of a room's reservations inside the
// inclusive date window. An unknown room yields an empty list.
func (s *ReservationService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) (occurrences []Occurrence, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.occurrences == nil {
		err = fmt.Errorf("occurrence engine not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListOccurrences",
		"room_id", params.RoomID,
		"from", params.From,
		"to", params.To,
	)

	occurrences, err = s.occurrences.GetOccurrences(ctx, params.From, params.To, params.RoomID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list occurrences", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	logger.DebugContext(ctx, "occurrences listed", "result_count", len(occurrences))
	return occurrences, nil
}

// RoomOccurrences is ListOccurrences for a room that must exist.
func (s *ReservationService) RoomOccurrences(ctx context.Context, params ListOccurrencesParams) (RoomOccurrences, error) {
	if s == nil {
		return RoomOccurrences{}, fmt.Errorf("ReservationService is nil")
	}
	if s.rooms == nil {
		return RoomOccurrences{}, ErrNotFound
	}

	room, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		return RoomOccurrences{}, mapReservationRepoError(err)
	}

	occurrences, err := s.ListOccurrences(ctx, params)
	if err != nil {
		return RoomOccurrences{}, err
	}
	return RoomOccurrences{Room: room, Occurrences: occurrences}, nil
}

func (s *ReservationService) validateReservationInput(input ReservationInput) (*recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}

	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case len(name) > maxReservationNameLength:
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxReservationNameLength))
	}
	if len(strings.TrimSpace(input.Description)) > maxReservationDescriptionLength {
		vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxReservationDescriptionLength))
	}

	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.End.After(input.Start) {
		vErr.add("end", "end must be after start")
	}

	if input.Recurrence == nil {
		return nil, vErr
	}

	count := input.Recurrence.Count
	if count == nil {
		c := s.defaultCount
		count = &c
	}
	rule, err := recurrence.NewRule(input.Recurrence.Frequency, input.Recurrence.NthWeekdays, count)
	if err != nil {
		var ruleErr *recurrence.RuleError
		if errors.As(err, &ruleErr) {
			vErr.add("recurrence."+ruleErr.Field, ruleErr.Reason)
		} else {
			vErr.add("recurrence", err.Error())
		}
		return nil, vErr
	}
	if rule.Count <= 0 {
		vErr.add("recurrence.count", "count must be positive")
		return nil, vErr
	}
	return &rule, vErr
}

func mapReservationRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return newValidationError("room_id", "room does not exist")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("reservation", "reservation violates a storage constraint")
	}
	return err
}
