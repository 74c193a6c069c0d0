package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/example/room-reservations/internal/recurrence"
)

var allKeys = []string{
	"CONFIG_FILE", "HTTP_PORT", "STORAGE", "SQLITE_DSN", "TIMEZONE", "RECURRENCE_CAP",
	"LOG_LEVEL", "PRINCIPAL_HEADER", "ADMIN_USERS", "PUBLIC_URL", "SEND_APPROVER_EMAIL",
	"APPROVER_EMAILS", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
	"SMTP_FROM", "DIGEST_CRON",
}

// clearEnv blanks every variable; t.Setenv restores the previous values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(EnvPrefix+key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roomres.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageSQLite || cfg.SQLiteDSN != "reservations.db" {
			t.Fatalf("unexpected storage defaults: %q %q", cfg.Storage, cfg.SQLiteDSN)
		}
		if cfg.RecurrenceCap != recurrence.DefaultCount {
			t.Fatalf("expected recurrence cap %d, got %d", recurrence.DefaultCount, cfg.RecurrenceCap)
		}
		if cfg.Location().String() != "UTC" {
			t.Fatalf("expected UTC, got %s", cfg.Location())
		}
		if cfg.PublicURL != "http://localhost:8080" {
			t.Fatalf("unexpected public url %q", cfg.PublicURL)
		}
		if cfg.NotificationsEnabled() {
			t.Fatalf("notifications should be off by default")
		}
	})

	t.Run("parses numeric, list and boolean fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMRES_HTTP_PORT", "9090")
		t.Setenv("ROOMRES_STORAGE", "Memory")
		t.Setenv("ROOMRES_TIMEZONE", "Asia/Tokyo")
		t.Setenv("ROOMRES_RECURRENCE_CAP", "52")
		t.Setenv("ROOMRES_ADMIN_USERS", "root, facilities ,")
		t.Setenv("ROOMRES_PUBLIC_URL", "https://rooms.example.com/")
		t.Setenv("ROOMRES_SEND_APPROVER_EMAIL", "true")
		t.Setenv("ROOMRES_APPROVER_EMAILS", "approver@example.com")
		t.Setenv("ROOMRES_SMTP_HOST", "smtp.example.com")
		t.Setenv("ROOMRES_SMTP_PORT", "2525")
		t.Setenv("ROOMRES_SMTP_FROM", "Rooms <rooms@example.com>")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.Storage != StorageMemory || cfg.RecurrenceCap != 52 {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.Location().String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %s", cfg.Location())
		}
		if !reflect.DeepEqual(cfg.AdminUsers, []string{"root", "facilities"}) {
			t.Fatalf("unexpected admins %v", cfg.AdminUsers)
		}
		if cfg.PublicURL != "https://rooms.example.com" {
			t.Fatalf("unexpected public url %q", cfg.PublicURL)
		}
		if !cfg.SendApproverEmail || cfg.SMTP.Port != 2525 {
			t.Fatalf("unexpected notification settings: %+v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMRES_HTTP_PORT", "http")
		t.Setenv("ROOMRES_RECURRENCE_CAP", "-1")
		t.Setenv("ROOMRES_STORAGE", "postgres")
		t.Setenv("ROOMRES_TIMEZONE", "Mars/Olympus")
		t.Setenv("ROOMRES_LOG_LEVEL", "loud")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"ROOMRES_HTTP_PORT", "ROOMRES_RECURRENCE_CAP", "storage", "timezone", "log_level"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in error %q", key, err.Error())
			}
		}
	})

	t.Run("requires smtp settings when notifications are on", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMRES_DIGEST_CRON", "@daily")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when smtp settings are missing")
		}
		expected := "required settings are missing: smtp.host, smtp.from, approver_emails"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Run("file provides base values and environment overrides them", func(t *testing.T) {
		clearEnv(t)
		path := writeFile(t, `
http_port: 7000
storage: memory
timezone: Europe/Berlin
admin_users: [root]
send_approver_email: true
approver_emails:
  - approver@example.com
smtp:
  host: smtp.example.com
  from: rooms@example.com
  username: mailer
digest_cron: "0 8 * * 1-5"
`)
		t.Setenv("ROOMRES_CONFIG_FILE", path)
		t.Setenv("ROOMRES_HTTP_PORT", "7100")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7100 {
			t.Fatalf("expected environment to override port, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageMemory || cfg.Location().String() != "Europe/Berlin" {
			t.Fatalf("unexpected file values: %+v", cfg)
		}
		if cfg.SMTP.Port != 587 || cfg.SMTP.Username != "mailer" {
			t.Fatalf("expected smtp defaults merged with file, got %+v", cfg.SMTP)
		}
		if cfg.DigestCron != "0 8 * * 1-5" {
			t.Fatalf("unexpected digest cron %q", cfg.DigestCron)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMRES_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Fatalf("expected missing file error, got %v", err)
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMRES_CONFIG_FILE", writeFile(t, "http_port: [not a number"))

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Fatalf("expected parse error, got %v", err)
		}
	})
}
