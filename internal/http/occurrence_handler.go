package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/blake2b"

	"github.com/example/room-reservations/internal/application"
)

type occurrenceService interface {
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) ([]application.Occurrence, error)
	RoomOccurrences(ctx context.Context, params application.ListOccurrencesParams) (application.RoomOccurrences, error)
}

// OccurrenceHandler serves the occurrence feed as JSON and iCalendar.
type OccurrenceHandler struct {
	service   occurrenceService
	location  *time.Location
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewOccurrenceHandler constructs the feed handler. loc is the zone wire times are
// rendered in; nil means UTC.
func NewOccurrenceHandler(service occurrenceService, loc *time.Location, logger *slog.Logger) *OccurrenceHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &OccurrenceHandler{service: service, location: loc, now: time.Now, responder: newResponder(base), logger: base}
}

func (h *OccurrenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "OccurrenceHandler", operation, attrs...)
}

// Legacy serves GET /get-reservation/{from}/{to}/{room}.
func (h *OccurrenceHandler) Legacy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.serveFeed(w, r, application.ListOccurrencesParams{
		RoomID: vars["room"],
		From:   vars["from"],
		To:     vars["to"],
	})
}

// List serves GET /rooms/{room}/occurrences?from=&to=.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	h.serveFeed(w, r, application.ListOccurrencesParams{
		RoomID: mux.Vars(r)["room"],
		From:   query.Get("from"),
		To:     query.Get("to"),
	})
}

func (h *OccurrenceHandler) serveFeed(w http.ResponseWriter, r *http.Request, params application.ListOccurrencesParams) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if strings.TrimSpace(params.RoomID) == "" {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	logger := h.log(ctx, "Feed", "room_id", params.RoomID, "from", params.From, "to", params.To)
	occurrences, err := h.service.ListOccurrences(ctx, params)
	if err != nil {
		logger.WarnContext(ctx, "occurrence feed failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	body, err := json.Marshal(toOccurrenceDTOs(occurrences, h.location))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	etag := feedETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		logger.DebugContext(ctx, "occurrence feed not modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	logger.DebugContext(ctx, "occurrence feed served", "result_count", len(occurrences))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.ErrorContext(ctx, "failed to write feed", "error", err)
	}
}

// Calendar serves GET /rooms/{room}/occurrences.ics?from=&to=.
func (h *OccurrenceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	params := application.ListOccurrencesParams{
		RoomID: mux.Vars(r)["room"],
		From:   query.Get("from"),
		To:     query.Get("to"),
	}

	logger := h.log(ctx, "Calendar", "room_id", params.RoomID, "from", params.From, "to", params.To)
	feed, err := h.service.RoomOccurrences(ctx, params)
	if err != nil {
		logger.WarnContext(ctx, "calendar export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	body := buildCalendar(feed.Room, feed.Occurrences, h.location, h.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+feed.Room.ID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.ErrorContext(ctx, "failed to write calendar", "error", err)
		return
	}
	logger.DebugContext(ctx, "calendar exported", "result_count", len(feed.Occurrences))
}

// occurrenceDTO is one entry of the feed consumed by the calendar widget.
type occurrenceDTO struct {
	ID          string `json:"id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Text        string `json:"text"`
	BackColor   string `json:"backColor"`
	BorderColor string `json:"borderColor"`
}

func toOccurrenceDTOs(occurrences []application.Occurrence, loc *time.Location) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occ := range occurrences {
		out = append(out, occurrenceDTO{
			ID:          occ.Key,
			Start:       formatWallTime(occ.Start, loc),
			End:         formatWallTime(occ.End, loc),
			Text:        occ.DisplayText,
			BackColor:   occ.Color,
			BorderColor: occ.BorderColor,
		})
	}
	return out
}

func feedETag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
