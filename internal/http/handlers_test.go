package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/occurrence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/recurrence"
	"github.com/example/room-reservations/internal/testfixtures"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	store := memory.New()
	testfixtures.Seed(t, store, []application.Room{testfixtures.NewRoom("room-1")},
		testfixtures.NewReservation("weekly", "room-1", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC),
			testfixtures.Weekly(3), testfixtures.Approved(), testfixtures.WithName("Standup")),
		testfixtures.NewReservation("single", "room-1", time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC),
			testfixtures.WithName("Demo & review")),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("id")
	engine := occurrence.NewEngine(store, recurrence.NewExpander(time.UTC, 0), logger)
	rooms := application.NewRoomServiceWithLogger(store, ids.NextFunc(), clock.NowFunc(), logger)
	reservations := application.NewReservationServiceWithLogger(store, store, engine, nil, 0, ids.NextFunc(), clock.NowFunc(), logger)

	handler := NewRouter(RouterConfig{
		Reservations: NewReservationHandler(reservations, time.UTC, logger),
		Occurrences:  NewOccurrenceHandler(reservations, time.UTC, logger),
		Rooms:        NewRoomHandler(rooms, logger),
		Health:       NewHealthHandler(store, logger),
		Logger:       logger,
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(logger),
			Authenticate(AuthConfig{Admins: []string{"root"}}),
		},
	})
	return testServer{handler: handler, store: store}
}

func (s testServer) do(t *testing.T, method, target, user, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set(DefaultPrincipalHeader, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestOccurrenceFeed(t *testing.T) {
	srv := newTestServer(t)

	t.Run("legacy route returns widget entries", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/get-reservation/2024-03-01/2024-03-31/room-1", "", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("ETag"))

		entries := decode[[]occurrenceDTO](t, rec)
		require.Len(t, entries, 4)
		assert.Equal(t, occurrenceDTO{
			ID:          "single",
			Start:       "2024-03-12T14:00:00",
			End:         "2024-03-12T15:00:00",
			Text:        "<b>Demo &amp; review (Unapproved)</b><br/>02:00PM - 03:00PM<br/>Weekly planning",
			BackColor:   occurrence.PendingColor,
			BorderColor: occurrence.BorderColor,
		}, entries[0])

		ids := []string{entries[1].ID, entries[2].ID, entries[3].ID}
		assert.Equal(t, []string{"weekly:0", "weekly:1", "weekly:2"}, ids)
		assert.Equal(t, "2024-03-18T09:00:00", entries[3].Start)
		assert.Equal(t, occurrence.ApprovedColor, entries[3].BackColor)
	})

	t.Run("query route honors the window", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-03-11&to=2024-03-12", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		entries := decode[[]occurrenceDTO](t, rec)
		require.Len(t, entries, 2)
		assert.Equal(t, "single", entries[0].ID)
		assert.Equal(t, "weekly:1", entries[1].ID)
	})

	t.Run("matching etag yields not modified", func(t *testing.T) {
		first := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-03-01&to=2024-03-31", "", "")
		etag := first.Header().Get("ETag")
		require.NotEmpty(t, etag)

		second := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-03-01&to=2024-03-31", "", "", "If-None-Match", etag)
		assert.Equal(t, http.StatusNotModified, second.Code)
		assert.Empty(t, second.Body.String())

		other := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-03-01&to=2024-03-11", "", "", "If-None-Match", etag)
		assert.Equal(t, http.StatusOK, other.Code)
		assert.NotEqual(t, etag, other.Header().Get("ETag"))
	})

	t.Run("unknown room is an empty feed", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/get-reservation/2024-03-01/2024-03-31/room-404", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("reversed or malformed range is a bad request", func(t *testing.T) {
		for _, target := range []string{
			"/get-reservation/2024-03-31/2024-03-01/room-1",
			"/rooms/room-1/occurrences?from=March&to=2024-03-01",
			"/rooms/room-1/occurrences",
		} {
			rec := srv.do(t, http.MethodGet, target, "", "")
			require.Equal(t, http.StatusBadRequest, rec.Code, target)
			assert.Equal(t, "INVALID_RANGE", decode[errorResponse](t, rec).ErrorCode)
		}
	})
}

func TestOccurrenceCalendar(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences.ics?from=2024-03-01&to=2024-03-31", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))

	cal, err := ical.ParseCalendar(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "single@room-reservations", events[0].Id())
	assert.Equal(t, "TENTATIVE", events[0].GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Equal(t, "weekly:0@room-reservations", events[1].Id())
	assert.Equal(t, "CONFIRMED", events[1].GetProperty(ical.ComponentPropertyStatus).Value)
	assert.Equal(t, "Standup", events[1].GetProperty(ical.ComponentPropertySummary).Value)

	missing := srv.do(t, http.MethodGet, "/rooms/room-404/occurrences.ics?from=2024-03-01&to=2024-03-31", "", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestReservationCommands(t *testing.T) {
	srv := newTestServer(t)

	const body = `{
		"room_id": "room-1",
		"name": "Retro",
		"start": "2024-03-29T16:00:00",
		"end": "2024-03-29T17:00:00",
		"recurrence": {"frequency": "monthly_nth_weekday", "nth_weekdays": [-1]}
	}`

	t.Run("create requires a principal", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/reservations", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH_REQUIRED", decode[errorResponse](t, rec).ErrorCode)
	})

	t.Run("create rejects malformed fields", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/reservations", "alice", `{"room_id":"room-1","name":"","start":"2024-03-29 16:00","end":"2024-03-29T17:00:00","recurrence":{"frequency":"WEEKLY","count":0}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

		resp := decode[errorResponse](t, rec)
		assert.Equal(t, "VALIDATION_FAILED", resp.ErrorCode)
		assert.Contains(t, resp.Errors, "name")
		assert.Contains(t, resp.Errors, "start")
		assert.Contains(t, resp.Errors, "recurrence.count")
	})

	t.Run("create rejects invalid json", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/reservations", "alice", `{"room_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var created reservationDTO
	t.Run("create stores a pending recurring reservation", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/reservations", "alice", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		created = decode[reservationResponse](t, rec).Reservation
		assert.Equal(t, "alice", created.OwnerID)
		assert.Equal(t, "2024-03-29T16:00:00", created.Start)
		assert.False(t, created.Approved)
		require.NotNil(t, created.Recurrence)
		assert.Equal(t, "MONTHLY_NTH_WEEKDAY", created.Recurrence.Frequency)
		assert.Equal(t, []int{-1}, created.Recurrence.NthWeekdays)
		assert.Equal(t, recurrence.DefaultCount, created.Recurrence.Count)
	})

	t.Run("new reservation appears in the feed", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-04-01&to=2024-04-30", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decode[[]occurrenceDTO](t, rec)
		require.Len(t, entries, 1)
		assert.Equal(t, created.ID+":1", entries[0].ID)
		assert.Equal(t, "2024-04-26T16:00:00", entries[0].Start)
	})

	t.Run("approve requires an administrator", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/reservations/"+created.ID+"/approve", "alice", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = srv.do(t, http.MethodGet, "/approve-reservation/"+created.ID, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("approval link approves", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/approve-reservation/"+created.ID, "root", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[reservationResponse](t, rec).Reservation.Approved)

		rec = srv.do(t, http.MethodPost, "/reservations/"+created.ID+"/approve", "root", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = srv.do(t, http.MethodPost, "/reservations/missing/approve", "root", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete is limited to owner or administrator", func(t *testing.T) {
		rec := srv.do(t, http.MethodDelete, "/reservations/"+created.ID, "bob", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = srv.do(t, http.MethodDelete, "/reservations/"+created.ID, "alice", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = srv.do(t, http.MethodDelete, "/reservations/"+created.ID, "root", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRoomHandlers(t *testing.T) {
	srv := newTestServer(t)

	t.Run("anyone may list rooms", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/rooms", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		rooms := decode[listRoomsResponse](t, rec).Rooms
		require.Len(t, rooms, 1)
		assert.Equal(t, "room-1", rooms[0].ID)
	})

	t.Run("mutations require an administrator", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/rooms", "alice", `{"name":"Annex"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = srv.do(t, http.MethodDelete, "/rooms/room-1", "alice", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("administrator creates and deletes rooms", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/rooms", "root", `{"name":"Annex","description":"ground floor"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		room := decode[roomResponse](t, rec).Room
		assert.Equal(t, "Annex", room.Name)

		rec = srv.do(t, http.MethodPost, "/rooms", "root", `{"name":"annex"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = srv.do(t, http.MethodPost, "/rooms", "root", `{"name":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = srv.do(t, http.MethodDelete, "/rooms/"+room.ID, "root", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("deleting a room removes its occurrences", func(t *testing.T) {
		rec := srv.do(t, http.MethodDelete, "/rooms/room-1", "root", "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = srv.do(t, http.MethodGet, "/rooms/room-1/occurrences?from=2024-03-01&to=2024-03-31", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})
}

func TestRouterFallbacks(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Status)

	rec = srv.do(t, http.MethodPut, "/rooms", "root", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = srv.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEtagMatches(t *testing.T) {
	etag := feedETag([]byte("[]"))
	assert.True(t, etagMatches(etag, etag))
	assert.True(t, etagMatches(`"other", W/`+etag, etag))
	assert.True(t, etagMatches("*", etag))
	assert.False(t, etagMatches("", etag))
	assert.False(t, etagMatches(`"other"`, etag))
	assert.Len(t, etag, 34)
}
