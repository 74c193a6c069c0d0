// Package http exposes the reservation service over HTTP using gorilla/mux.
//
// Endpoints:
//   - GET /get-reservation/{from}/{to}/{room} and GET /rooms/{room}/occurrences?from=&to=:
//     the occurrence feed for a room as a JSON array of
//     {"id","start","end","text","backColor","borderColor"}. Dates are YYYY-MM-DD and
//     the window is inclusive; times are "2006-01-02T15:04:05" in the service time zone.
//     Responses carry an ETag and honor If-None-Match.
//   - GET /rooms/{room}/occurrences.ics?from=&to=: the same occurrences as iCalendar.
//   - GET /rooms, POST /rooms, DELETE /rooms/{room}: room catalog. Listing is public,
//     mutations require an administrator.
//   - POST /reservations: create a reservation, optionally recurring. Body described by
//     reservationRequest in reservation_handler.go.
//   - DELETE /reservations/{id}: delete a reservation (owner or administrator).
//   - POST|GET /reservations/{id}/approve and /approve-reservation/{id}: approve a
//     reservation (administrator). The GET form is the link mailed to approvers.
//   - GET /healthz: liveness and storage ping.
//
// The caller is identified by a header set by an authenticating proxy, see Authenticate.
package http
