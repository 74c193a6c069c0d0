// Package config loads service settings from an optional YAML file and ROOMRES_*
// environment variables. Environment values override the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/recurrence"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ROOMRES_"

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Config captures the service configuration.
type Config struct {
	HTTPPort          int        `yaml:"http_port"`
	Storage           string     `yaml:"storage"`
	SQLiteDSN         string     `yaml:"sqlite_dsn"`
	Timezone          string     `yaml:"timezone"`
	RecurrenceCap     int        `yaml:"recurrence_cap"`
	LogLevel          string     `yaml:"log_level"`
	PrincipalHeader   string     `yaml:"principal_header"`
	AdminUsers        []string   `yaml:"admin_users"`
	PublicURL         string     `yaml:"public_url"`
	SendApproverEmail bool       `yaml:"send_approver_email"`
	ApproverEmails    []string   `yaml:"approver_emails"`
	SMTP              SMTPConfig `yaml:"smtp"`
	DigestCron        string     `yaml:"digest_cron"`

	location *time.Location
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		Storage:         StorageSQLite,
		SQLiteDSN:       "reservations.db",
		Timezone:        "UTC",
		RecurrenceCap:   recurrence.DefaultCount,
		LogLevel:        "info",
		PrincipalHeader: "X-Remote-User",
		SMTP:            SMTPConfig{Port: 587},
	}
}

// Location returns the loaded time zone, UTC if Load has not resolved one.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// NotificationsEnabled reports whether approver mail or the digest is configured.
func (c Config) NotificationsEnabled() bool {
	return c.SendApproverEmail || c.DigestCron != ""
}

// Load reads ROOMRES_CONFIG_FILE when set, then applies environment overrides and
// validates the result. Every missing or invalid setting is reported at once.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := applyEnvironment(&cfg)
	missing, more := cfg.validate()
	invalid = append(invalid, more...)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required settings are missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("settings have invalid values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvironment(cfg *Config) []string {
	invalid := make([]string, 0, 2)
	lookup := func(key string) (string, bool) {
		value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
		return value, value != ""
	}
	positiveInt := func(key string, target *int) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, EnvPrefix+key)
			return
		}
		*target = n
	}
	str := func(key string, target *string) {
		if value, ok := lookup(key); ok {
			*target = value
		}
	}
	list := func(key string, target *[]string) {
		if value, ok := lookup(key); ok {
			*target = splitList(value)
		}
	}

	positiveInt("HTTP_PORT", &cfg.HTTPPort)
	str("STORAGE", &cfg.Storage)
	str("SQLITE_DSN", &cfg.SQLiteDSN)
	str("TIMEZONE", &cfg.Timezone)
	positiveInt("RECURRENCE_CAP", &cfg.RecurrenceCap)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("PRINCIPAL_HEADER", &cfg.PrincipalHeader)
	list("ADMIN_USERS", &cfg.AdminUsers)
	str("PUBLIC_URL", &cfg.PublicURL)
	list("APPROVER_EMAILS", &cfg.ApproverEmails)
	str("SMTP_HOST", &cfg.SMTP.Host)
	positiveInt("SMTP_PORT", &cfg.SMTP.Port)
	str("SMTP_USERNAME", &cfg.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)
	str("DIGEST_CRON", &cfg.DigestCron)

	if value, ok := lookup("SEND_APPROVER_EMAIL"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, EnvPrefix+"SEND_APPROVER_EMAIL")
		} else {
			cfg.SendApproverEmail = enabled
		}
	}
	return invalid
}

// validate resolves derived values and reports missing and invalid settings by their
// file key.
func (c *Config) validate() (missing, invalid []string) {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.SQLiteDSN) == "" {
			missing = append(missing, "sqlite_dsn")
		}
	default:
		invalid = append(invalid, "storage")
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}
	if c.RecurrenceCap <= 0 {
		invalid = append(invalid, "recurrence_cap")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "log_level")
	}

	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		invalid = append(invalid, "timezone")
	} else {
		c.location = loc
	}

	if strings.TrimSpace(c.PrincipalHeader) == "" {
		c.PrincipalHeader = "X-Remote-User"
	}
	c.AdminUsers = compact(c.AdminUsers)
	c.ApproverEmails = compact(c.ApproverEmails)
	if c.PublicURL == "" {
		c.PublicURL = fmt.Sprintf("http://localhost:%d", c.HTTPPort)
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")

	if c.NotificationsEnabled() {
		if c.SMTP.Host == "" {
			missing = append(missing, "smtp.host")
		}
		if c.SMTP.From == "" {
			missing = append(missing, "smtp.from")
		} else if _, err := mail.ParseAddress(c.SMTP.From); err != nil {
			invalid = append(invalid, "smtp.from")
		}
		if len(c.ApproverEmails) == 0 {
			missing = append(missing, "approver_emails")
		}
		for _, addr := range c.ApproverEmails {
			if _, err := mail.ParseAddress(addr); err != nil {
				invalid = append(invalid, "approver_emails")
				break
			}
		}
	}
	return missing, invalid
}

func splitList(value string) []string {
	return compact(strings.Split(value, ","))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
