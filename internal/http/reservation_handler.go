package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/recurrence"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	ApproveReservation(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	DeleteReservation(ctx context.Context, principal application.Principal, reservationID string) error
}

// ReservationHandler serves the reservation commands.
type ReservationHandler struct {
	service   reservationService
	location  *time.Location
	validate  *validator.Validate
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler constructs the handler. loc interprets and renders wire times;
// nil means UTC.
func NewReservationHandler(service reservationService, loc *time.Location, logger *slog.Logger) *ReservationHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &ReservationHandler{
		service:   service,
		location:  loc,
		validate:  newValidator(),
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// Create serves POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Create", "principal_id", principal.UserID)

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode reservation request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validateRequest(h.validate, req); err != nil {
		logger.WarnContext(ctx, "reservation request rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	input, err := req.toInput(h.location)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	reservation, err := h.service.CreateReservation(ctx, application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(ctx, "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation, h.location)})
}

// Approve serves POST|GET /reservations/{id}/approve and /approve-reservation/{id}.
func (h *ReservationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	reservationID := strings.TrimSpace(mux.Vars(r)["id"])
	if reservationID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Approve", "principal_id", principal.UserID, "reservation_id", reservationID)

	reservation, err := h.service.ApproveReservation(ctx, principal, reservationID)
	if err != nil {
		logger.ErrorContext(ctx, "reservation approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "reservation approved")
	h.responder.writeJSON(ctx, w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation, h.location)})
}

// Delete serves DELETE /reservations/{id}.
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	reservationID := strings.TrimSpace(mux.Vars(r)["id"])
	if reservationID == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Delete", "principal_id", principal.UserID, "reservation_id", reservationID)
	if err := h.service.DeleteReservation(ctx, principal, reservationID); err != nil {
		logger.ErrorContext(ctx, "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "reservation deleted")
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

type reservationRequest struct {
	RoomID      string             `json:"room_id" validate:"required"`
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=1024"`
	Start       string             `json:"start" validate:"required,walltime"`
	End         string             `json:"end" validate:"required,walltime"`
	Recurrence  *recurrenceRequest `json:"recurrence"`
}

type recurrenceRequest struct {
	Frequency   string `json:"frequency" validate:"required"`
	NthWeekdays []int  `json:"nth_weekdays" validate:"omitempty,dive,min=-5,max=5,ne=0"`
	Count       *int   `json:"count" validate:"omitempty,min=1"`
}

func (r reservationRequest) toInput(loc *time.Location) (application.ReservationInput, error) {
	start, err := parseWallTime(r.Start, loc)
	if err != nil {
		return application.ReservationInput{}, &application.ValidationError{FieldErrors: map[string]string{"start": "start is not a valid time"}}
	}
	end, err := parseWallTime(r.End, loc)
	if err != nil {
		return application.ReservationInput{}, &application.ValidationError{FieldErrors: map[string]string{"end": "end is not a valid time"}}
	}

	input := application.ReservationInput{
		RoomID:      strings.TrimSpace(r.RoomID),
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Start:       start,
		End:         end,
	}
	if r.Recurrence != nil {
		input.Recurrence = &application.RecurrenceInput{
			Frequency:   strings.TrimSpace(r.Recurrence.Frequency),
			NthWeekdays: r.Recurrence.NthWeekdays,
			Count:       r.Recurrence.Count,
		}
	}
	return input, nil
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type reservationDTO struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"room_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	OwnerID     string         `json:"owner_id"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Approved    bool           `json:"approved"`
	Recurrence  *recurrenceDTO `json:"recurrence,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type recurrenceDTO struct {
	Frequency   string `json:"frequency"`
	NthWeekdays []int  `json:"nth_weekdays,omitempty"`
	Count       int    `json:"count"`
	Summary     string `json:"summary"`
}

func toReservationDTO(reservation application.Reservation, loc *time.Location) reservationDTO {
	dto := reservationDTO{
		ID:          reservation.ID,
		RoomID:      reservation.RoomID,
		Name:        reservation.Name,
		Description: reservation.Description,
		OwnerID:     reservation.OwnerID,
		Start:       formatWallTime(reservation.Start, loc),
		End:         formatWallTime(reservation.End, loc),
		Approved:    reservation.Approved,
		CreatedAt:   reservation.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   reservation.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rule := reservation.Recurrence; rule != nil {
		dto.Recurrence = toRecurrenceDTO(*rule)
	}
	return dto
}

func toRecurrenceDTO(rule recurrence.Rule) *recurrenceDTO {
	return &recurrenceDTO{
		Frequency:   string(rule.Frequency),
		NthWeekdays: rule.NthWeekdays,
		Count:       rule.Count,
		Summary:     rule.Describe(),
	}
}
