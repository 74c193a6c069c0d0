package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/recurrence"
	"github.com/example/room-reservations/internal/testfixtures"
)

type recordingSender struct {
	messages []*mail.Msg
	err      error
}

func (s *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	s.messages = append(s.messages, messages...)
	return s.err
}

func pendingNotice() application.PendingNotice {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	reservation := testfixtures.NewReservation("res-1", "room-1", start,
		testfixtures.WithName("Standup <daily>"),
		testfixtures.Weekly(10),
	)
	return application.PendingNotice{Reservation: reservation, Room: testfixtures.NewRoom("room-1")}
}

func TestNewMailerRequiresConfiguration(t *testing.T) {
	_, err := NewMailer(nil, MailerConfig{From: "rooms@example.com", Approvers: []string{"a@example.com"}}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(&recordingSender{}, MailerConfig{Approvers: []string{"a@example.com"}}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(&recordingSender{}, MailerConfig{From: "rooms@example.com"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMailer_NotifyPendingReservation(t *testing.T) {
	sender := &recordingSender{}
	mailer, err := NewMailer(sender, MailerConfig{
		From:      "rooms@example.com",
		Approvers: []string{"approver@example.com", "facilities@example.com"},
		PublicURL: "https://rooms.example.com/",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, mailer.NotifyPendingReservation(context.Background(), pendingNotice()))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, []string{"Reservation Standup <daily> Pending Approval"}, msg.GetGenHeader(mail.HeaderSubject))

	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"approver@example.com", "facilities@example.com"}, recipients)
}

func TestMailer_NotifyPendingReservationSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	mailer, err := NewMailer(sender, MailerConfig{From: "rooms@example.com", Approvers: []string{"a@example.com"}}, nil)
	require.NoError(t, err)

	err = mailer.NotifyPendingReservation(context.Background(), pendingNotice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "res-1")
}

func TestPendingBodies(t *testing.T) {
	view := newMessageView(pendingNotice(), "https://rooms.example.com/", time.UTC)
	text, html, err := render(pendingText, pendingHTML, view)
	require.NoError(t, err)

	assert.Contains(t, text, "Room:         Board Room")
	assert.Contains(t, text, "Name:         Standup <daily>")
	assert.Contains(t, text, "Start:        2024-03-04 09:00")
	assert.Contains(t, text, "End:          2024-03-04 10:00")
	assert.Contains(t, text, "Repeats:      weekly, 10 times")
	assert.Contains(t, text, "Approve: https://rooms.example.com/approve-reservation/res-1")

	assert.Contains(t, html, "Standup &lt;daily&gt;")
	assert.Contains(t, html, `href="https://rooms.example.com/approve-reservation/res-1"`)
}

func TestPendingBodiesRenderInLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	notice := pendingNotice()
	notice.Reservation.Recurrence = nil

	text, _, err := render(pendingText, pendingHTML, newMessageView(notice, "", tokyo))
	require.NoError(t, err)

	assert.Contains(t, text, "Start:        2024-03-04 18:00")
	assert.NotContains(t, text, "Repeats:")
	assert.Contains(t, text, "Approve: /approve-reservation/res-1")
}

func TestMailer_SendDigest(t *testing.T) {
	sender := &recordingSender{}
	mailer, err := NewMailer(sender, MailerConfig{From: "rooms@example.com", Approvers: []string{"a@example.com"}}, nil)
	require.NoError(t, err)

	require.NoError(t, mailer.SendDigest(context.Background(), nil))
	assert.Empty(t, sender.messages)

	second := pendingNotice()
	second.Reservation.ID = "res-2"
	second.Reservation.Recurrence = &recurrence.Rule{Frequency: recurrence.FrequencyMonthlyNthWeekday, NthWeekdays: []int{-1}, Count: 6}

	require.NoError(t, mailer.SendDigest(context.Background(), []application.PendingNotice{pendingNotice(), second}))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"2 Reservations Pending Approval"}, sender.messages[0].GetGenHeader(mail.HeaderSubject))

	views := []messageView{newMessageView(pendingNotice(), "", time.UTC), newMessageView(second, "", time.UTC)}
	text, _, err := render(digestText, digestHTML, views)
	require.NoError(t, err)
	assert.Contains(t, text, "2 reservation(s) are waiting for approval.")
	assert.Contains(t, text, "(monthly on the last weekday, 6 times)")
	assert.Contains(t, text, "/approve-reservation/res-2")
}

func TestApprovalURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/approve-reservation/abc", ApprovalURL("http://localhost:8080/", "abc"))
	assert.Equal(t, "http://localhost:8080/approve-reservation/abc", ApprovalURL("http://localhost:8080", "abc"))
}

func TestNewSMTPClientRequiresHost(t *testing.T) {
	_, err := NewSMTPClient(SMTPConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	client, err := NewSMTPClient(SMTPConfig{Host: "smtp.example.com", Username: "user", Password: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
