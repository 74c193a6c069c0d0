package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
)

// PendingSource lists reservations waiting for approval.
type PendingSource interface {
	ListPendingReservations(ctx context.Context) ([]application.Reservation, error)
}

// RoomSource resolves the room of a pending reservation.
type RoomSource interface {
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
}

// DigestSender delivers the digest. *Mailer satisfies it.
type DigestSender interface {
	SendDigest(ctx context.Context, notices []application.PendingNotice) error
}

// Digest periodically mails approvers the list of pending reservations.
type Digest struct {
	cron    *cron.Cron
	pending PendingSource
	rooms   RoomSource
	sender  DigestSender
	timeout time.Duration
	logger  *slog.Logger
}

// NewDigest schedules the digest on spec, a standard five-field cron expression or a
// descriptor such as "@daily", evaluated in loc. The schedule does not run until Start.
func NewDigest(spec string, loc *time.Location, pending PendingSource, rooms RoomSource, sender DigestSender, logger *slog.Logger) (*Digest, error) {
	if pending == nil || sender == nil {
		return nil, errors.New("notify: digest requires a pending source and a sender")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Digest{
		cron:    cron.New(cron.WithLocation(loc)),
		pending: pending,
		rooms:   rooms,
		sender:  sender,
		timeout: time.Minute,
		logger:  logger.With("component", "notify.Digest"),
	}
	if _, err := d.cron.AddFunc(spec, d.run); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return d, nil
}

// Start begins the schedule in its own goroutine.
func (d *Digest) Start() {
	d.logger.Info("starting pending digest scheduler")
	d.cron.Start()
}

// Stop halts the schedule and waits for a running digest to finish or ctx to end.
func (d *Digest) Stop(ctx context.Context) {
	done := d.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	d.logger.Info("pending digest scheduler stopped")
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.RunOnce(ctx); err != nil {
		d.logger.ErrorContext(ctx, "pending digest failed", "error", err)
	}
}

// RunOnce collects pending reservations and sends the digest immediately.
func (d *Digest) RunOnce(ctx context.Context) error {
	reservations, err := d.pending.ListPendingReservations(ctx)
	if err != nil {
		return fmt.Errorf("list pending reservations: %w", err)
	}
	if len(reservations) == 0 {
		d.logger.DebugContext(ctx, "no pending reservations")
		return nil
	}

	rooms := make(map[string]application.Room)
	notices := make([]application.PendingNotice, 0, len(reservations))
	for _, reservation := range reservations {
		room, ok := rooms[reservation.RoomID]
		if !ok && d.rooms != nil {
			found, err := d.rooms.GetRoom(ctx, reservation.RoomID)
			if err != nil && !errors.Is(err, application.ErrNotFound) && !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("get room %s: %w", reservation.RoomID, err)
			}
			room = found
			rooms[reservation.RoomID] = room
		}
		notices = append(notices, application.PendingNotice{Reservation: reservation, Room: room})
	}

	return d.sender.SendDigest(ctx, notices)
}
