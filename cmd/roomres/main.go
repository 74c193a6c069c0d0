package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/config"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/notify"
	"github.com/example/room-reservations/internal/occurrence"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/memory"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
	"github.com/example/room-reservations/internal/recurrence"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if logger, err = logging.New(os.Stdout, cfg.LogLevel); err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	app, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room reservation API listening",
		"addr", server.Addr,
		"storage", cfg.Storage,
		"timezone", cfg.Location().String(),
		"recurrence_cap", cfg.RecurrenceCap,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// app is the wired service: its HTTP handler plus everything that must be released
// on shutdown.
type app struct {
	Handler http.Handler

	store  persistence.Store
	digest *notify.Digest
	logger *slog.Logger
}

// newApp opens storage and wires services, notifications and routes. sender overrides
// the SMTP client when non-nil.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, sender notify.Sender) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	now := time.Now
	idGenerator := uuid.NewString

	engine := occurrence.NewEngine(store, recurrence.NewExpander(loc, cfg.RecurrenceCap), logger)
	roomService := application.NewRoomServiceWithLogger(store, idGenerator, now, logger)

	var (
		notifier application.Notifier
		mailer   *notify.Mailer
	)
	if cfg.NotificationsEnabled() {
		if mailer, err = newMailer(cfg, logger, sender); err != nil {
			store.Close()
			return nil, err
		}
		if cfg.SendApproverEmail {
			notifier = mailer
		}
	}

	reservationService := application.NewReservationServiceWithLogger(
		store, store, engine, notifier, cfg.RecurrenceCap, idGenerator, now, logger,
	)

	a := &app{store: store, logger: logger}
	if cfg.DigestCron != "" {
		digest, err := notify.NewDigest(cfg.DigestCron, loc, reservationService, roomService, mailer, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		digest.Start()
		a.digest = digest
	}

	a.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(reservationService, loc, logger),
		Occurrences:  httptransport.NewOccurrenceHandler(reservationService, loc, logger),
		Rooms:        httptransport.NewRoomHandler(roomService, logger),
		Health:       httptransport.NewHealthHandler(store, logger),
		Logger:       logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Authenticate(httptransport.AuthConfig{
				Header: cfg.PrincipalHeader,
				Admins: cfg.AdminUsers,
			}),
		},
	})
	return a, nil
}

// Close stops the digest schedule and releases storage.
func (a *app) Close() {
	if a.digest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		a.digest.Stop(ctx)
		cancel()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; reservations are lost on restart")
		return memory.New(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
}

func newMailer(cfg config.Config, logger *slog.Logger, sender notify.Sender) (*notify.Mailer, error) {
	if sender == nil {
		client, err := notify.NewSMTPClient(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return nil, err
		}
		sender = client
	}
	return notify.NewMailer(sender, notify.MailerConfig{
		From:      cfg.SMTP.From,
		Approvers: cfg.ApproverEmails,
		PublicURL: cfg.PublicURL,
		Location:  cfg.Location(),
	}, logger)
}
