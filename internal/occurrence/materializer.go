// Package occurrence turns stored reservations into the concrete, display-ready
// occurrences that fall inside a query window.
package occurrence

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// Display colors.
const (
	ApprovedColor = "#CED3DC"
	PendingColor  = "#F4DFB7"
	BorderColor   = "transparent"
)

const clockLayout = "03:04PM"

// Occurrence is one concrete instance of a reservation. It is derived on every query
// and never stored.
type Occurrence struct {
	ReservationID string
	Key           string
	Name          string
	Description   string
	Start         time.Time
	End           time.Time
	Approved      bool
	DisplayText   string
	Color         string
	BorderColor   string
}

// Materialize builds the occurrence of reservation starting at instant. index is the
// instant's ordinal in the rule expansion and is ignored for one-time reservations.
func Materialize(reservation persistence.Reservation, instant time.Time, index int) Occurrence {
	end := instant.Add(reservation.Duration())

	key := reservation.ID
	if reservation.Recurring() {
		key = reservation.ID + ":" + strconv.Itoa(index)
	}

	color := PendingColor
	if reservation.Approved {
		color = ApprovedColor
	}

	return Occurrence{
		ReservationID: reservation.ID,
		Key:           key,
		Name:          reservation.Name,
		Description:   reservation.Description,
		Start:         instant,
		End:           end,
		Approved:      reservation.Approved,
		DisplayText:   displayText(reservation, instant, end),
		Color:         color,
		BorderColor:   BorderColor,
	}
}

func displayText(reservation persistence.Reservation, start, end time.Time) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(reservation.Name))
	if !reservation.Approved {
		b.WriteString(" (Unapproved)")
	}
	b.WriteString("</b><br/>")
	b.WriteString(start.Format(clockLayout))
	b.WriteString(" - ")
	b.WriteString(end.Format(clockLayout))
	b.WriteString("<br/>")
	b.WriteString(html.EscapeString(reservation.Description))
	return b.String()
}
