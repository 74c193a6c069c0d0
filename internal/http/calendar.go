package http

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/room-reservations/internal/application"
)

const calendarProductID = "-//room-reservations//occurrence feed//EN"

// buildCalendar renders occurrences as an iCalendar document. Each occurrence key is
// its UID, so re-exports of overlapping windows update rather than duplicate events.
func buildCalendar(room application.Room, occurrences []application.Occurrence, loc *time.Location, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(room.Name)
	cal.SetXWRTimezone(loc.String())

	for _, occ := range occurrences {
		event := cal.AddEvent(occ.Key + "@room-reservations")
		event.SetDtStampTime(stamp)
		event.SetStartAt(occ.Start)
		event.SetEndAt(occ.End)
		event.SetSummary(occ.Name)
		if occ.Description != "" {
			event.SetDescription(occ.Description)
		}
		event.SetLocation(room.Name)
		if occ.Approved {
			event.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		} else {
			event.SetProperty(ical.ComponentPropertyStatus, "TENTATIVE")
		}
	}
	return cal.Serialize()
}
