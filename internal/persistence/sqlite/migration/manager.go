package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager brings a database up to the latest migration.
type Manager struct {
	scanner  *Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and an executor. A nil logger means slog.Default().
func NewManager(scanner *Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration in version order. It stops at the first
// failure; migrations applied before it stay applied.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "checked schema version",
		"current_version", status.CurrentVersion,
		"pending", status.PendingCount,
	)

	for _, migration := range status.PendingMigrations {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger := m.logger.With("version", migration.Version, "description", migration.Description)
		applyStart := time.Now()

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return newMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(applyStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return err
		}
		logger.InfoContext(ctx, "migration applied", "duration", elapsed)
	}

	if status.PendingCount > 0 {
		m.logger.InfoContext(ctx, "migrations completed", "applied", status.PendingCount, "duration", time.Since(started))
	}
	return nil
}

// Status compares the files on disk with the version table. An applied migration
// whose file checksum changed is reported as ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return nil, err
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, record := range applied {
		appliedByVersion[record.Version] = record
	}

	status := &Status{AppliedMigrations: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}

	for _, migration := range available {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return nil, newMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	status.PendingCount = len(status.PendingMigrations)
	return status, nil
}
