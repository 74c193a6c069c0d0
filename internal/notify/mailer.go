package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/example/room-reservations/internal/application"
)

// ErrNotConfigured is returned when the mailer lacks a sender or recipients.
var ErrNotConfigured = errors.New("notify: mailer not configured")

const defaultSMTPPort = 587

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Sender delivers composed messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// NewSMTPClient builds a go-mail client for cfg. Plain auth is used when a username is set.
func NewSMTPClient(cfg SMTPConfig) (*mail.Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrNotConfigured)
	}
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}

	opts := []mail.Option{mail.WithPort(port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not initialize smtp client: %w", err)
	}
	return client, nil
}

// Mailer sends approval requests and digests to a fixed approver list. It implements
// application.Notifier.
type Mailer struct {
	sender    Sender
	from      string
	approvers []string
	publicURL string
	location  *time.Location
	logger    *slog.Logger
}

// MailerConfig configures a Mailer.
type MailerConfig struct {
	From      string
	Approvers []string
	PublicURL string
	// Location renders reservation times; nil means UTC.
	Location *time.Location
}

// NewMailer constructs a Mailer.
func NewMailer(sender Sender, cfg MailerConfig, logger *slog.Logger) (*Mailer, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", ErrNotConfigured)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: from address is required", ErrNotConfigured)
	}
	if len(cfg.Approvers) == 0 {
		return nil, fmt.Errorf("%w: at least one approver address is required", ErrNotConfigured)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		sender:    sender,
		from:      cfg.From,
		approvers: append([]string(nil), cfg.Approvers...),
		publicURL: cfg.PublicURL,
		location:  loc,
		logger:    logger.With("component", "notify.Mailer"),
	}, nil
}

// NotifyPendingReservation mails the approvers about one unapproved reservation.
func (m *Mailer) NotifyPendingReservation(ctx context.Context, notice application.PendingNotice) error {
	if m == nil {
		return ErrNotConfigured
	}

	text, html, err := render(pendingText, pendingHTML, newMessageView(notice, m.publicURL, m.location))
	if err != nil {
		return err
	}
	msg, err := m.compose(PendingSubject(notice.Reservation.Name), text, html)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send approval request for %s: %w", notice.Reservation.ID, err)
	}

	m.logger.InfoContext(ctx, "approval request sent",
		"reservation_id", notice.Reservation.ID,
		"recipients", len(m.approvers),
	)
	return nil
}

// SendDigest mails a single summary of every pending reservation. An empty list sends nothing.
func (m *Mailer) SendDigest(ctx context.Context, notices []application.PendingNotice) error {
	if m == nil {
		return ErrNotConfigured
	}
	if len(notices) == 0 {
		return nil
	}

	views := make([]messageView, len(notices))
	for i, notice := range notices {
		views[i] = newMessageView(notice, m.publicURL, m.location)
	}
	text, html, err := render(digestText, digestHTML, views)
	if err != nil {
		return err
	}

	msg, err := m.compose(fmt.Sprintf("%d Reservations Pending Approval", len(notices)), text, html)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send pending digest: %w", err)
	}

	m.logger.InfoContext(ctx, "pending digest sent", "pending", len(notices))
	return nil
}

func (m *Mailer) compose(subject, text, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.To(m.approvers...); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}
