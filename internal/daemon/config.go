// Package daemon loads configuration and wires the settlement core.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// Environment overrides.
const (
	EnvHome        = "TIMEBANK_HOME"
	EnvDatabaseDSN = "TIMEBANK_DATABASE_DSN"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Notification sinks.
const (
	SinkOutbox = "outbox"
	SinkLog    = "log"
)

// Config is the complete TOML configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Feedback FeedbackConfig `toml:"feedback"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite | postgres
	Path   string `toml:"path"`   // sqlite data directory
	DSN    string `toml:"dsn"`    // postgres connection string
}

// LedgerConfig sets ledger policy. Values are hours.
type LedgerConfig struct {
	StartingBalance decimal.Decimal `toml:"starting_balance"`
	DebtCeiling     decimal.Decimal `toml:"debt_ceiling"`
}

// FeedbackConfig sets the rating reveal rules. SweepInterval "" or "0s"
// leaves the sweep to an external scheduler.
type FeedbackConfig struct {
	RevealAfter   string `toml:"reveal_after"`
	SweepInterval string `toml:"sweep_interval"`
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	Buffer int    `toml:"buffer"`
	Sink   string `toml:"sink"` // outbox | log
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Home returns the data home: $TIMEBANK_HOME or ~/.timebank.
func Home() string {
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".timebank")
}

// DefaultConfig returns the platform defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(Home(), "data"),
		},
		Ledger: LedgerConfig{
			StartingBalance: decimal.NewFromInt(3),
			DebtCeiling:     decimal.NewFromInt(-10),
		},
		Feedback: FeedbackConfig{
			RevealAfter: "168h",
		},
		Notify: NotifyConfig{
			Buffer: 256,
			Sink:   SinkOutbox,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults. TIMEBANK_DATABASE_DSN overrides the Postgres DSN.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the core cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := parseDuration(c.API.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("api.shutdown_timeout: %w", err))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn (or %s) is required for postgres", EnvDatabaseDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want %s or %s", c.Database.Driver, DriverSQLite, DriverPostgres))
	}

	if _, err := domain.ToUnits(c.Ledger.StartingBalance); err != nil {
		errs = append(errs, fmt.Errorf("ledger.starting_balance %s: %w", c.Ledger.StartingBalance, err))
	}
	if _, err := domain.SignedUnits(c.Ledger.DebtCeiling); err != nil {
		errs = append(errs, fmt.Errorf("ledger.debt_ceiling %s: %w", c.Ledger.DebtCeiling, err))
	} else if c.Ledger.DebtCeiling.IsPositive() {
		errs = append(errs, fmt.Errorf("ledger.debt_ceiling %s must not be positive", c.Ledger.DebtCeiling))
	}

	if d, err := parseDuration(c.Feedback.RevealAfter); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("feedback.reveal_after %q must be a positive duration", c.Feedback.RevealAfter))
	}
	if d, err := parseDuration(c.Feedback.SweepInterval); err != nil || d < 0 {
		errs = append(errs, fmt.Errorf("feedback.sweep_interval %q is not a duration", c.Feedback.SweepInterval))
	}

	if c.Notify.Buffer < 0 {
		errs = append(errs, fmt.Errorf("notify.buffer %d must not be negative", c.Notify.Buffer))
	}
	if c.Notify.Sink != SinkOutbox && c.Notify.Sink != SinkLog {
		errs = append(errs, fmt.Errorf("notify.sink %q: want %s or %s", c.Notify.Sink, SinkOutbox, SinkLog))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ShutdownTimeoutDuration returns the graceful shutdown limit.
func (c APIConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.ShutdownTimeout)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// RevealAfterDuration returns the rating timeout window.
func (c FeedbackConfig) RevealAfterDuration() time.Duration {
	d, _ := parseDuration(c.RevealAfter)
	return d
}

// SweepIntervalDuration returns the in-process sweep period; 0 disables it.
func (c FeedbackConfig) SweepIntervalDuration() time.Duration {
	d, _ := parseDuration(c.SweepInterval)
	return d
}

// parseDuration accepts Go durations plus a "d" day suffix. Empty is zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 && fmt.Sprintf("%dd", days) == s {
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
