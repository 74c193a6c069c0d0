package occurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/recurrence"
)

func TestMaterialize(t *testing.T) {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	reservation := persistence.Reservation{
		ID:          "res-1",
		Name:        "Design <review>",
		Description: "Q&A",
		Start:       start,
		End:         start.Add(90 * time.Minute),
	}

	t.Run("one-time pending", func(t *testing.T) {
		occ := Materialize(reservation, start, 7)

		assert.Equal(t, "res-1", occ.Key)
		assert.Equal(t, start.Add(90*time.Minute), occ.End)
		assert.Equal(t, PendingColor, occ.Color)
		assert.Equal(t, BorderColor, occ.BorderColor)
		assert.False(t, occ.Approved)
		assert.Equal(t, "<b>Design &lt;review&gt; (Unapproved)</b><br/>09:00AM - 10:30AM<br/>Q&amp;A", occ.DisplayText)
	})

	t.Run("recurring approved", func(t *testing.T) {
		recurring := reservation
		recurring.Approved = true
		recurring.Recurrence = &recurrence.Rule{Frequency: recurrence.FrequencyWeekly, Count: 3}
		instant := start.AddDate(0, 0, 14).Add(5 * time.Hour)

		occ := Materialize(recurring, instant, 2)

		assert.Equal(t, "res-1:2", occ.Key)
		assert.Equal(t, instant, occ.Start)
		assert.Equal(t, 90*time.Minute, occ.End.Sub(occ.Start))
		assert.Equal(t, ApprovedColor, occ.Color)
		assert.Equal(t, "<b>Design &lt;review&gt;</b><br/>02:00PM - 03:30PM<br/>Q&amp;A", occ.DisplayText)
	})
}
