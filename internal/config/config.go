package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mielski/chores/internal/core"
	"github.com/mielski/chores/internal/storage"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage backend selection
	DataBackend   string
	StateFilePath string
	SQLiteDBPath  string

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Household
	Users    []string
	Currency string

	// Undo history depth per user session
	UndoDepth int

	// Rollover worker
	RolloverInterval time.Duration

	// Default allowance settings for newly created accounts
	DefaultWeeklyAllowanceCents   int64
	DefaultTasksPerWeek           int
	DefaultBonusPerExtraTaskCents int64
	DefaultMaximumExtraTasks      int
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		DataBackend:   getEnv("DATA_BACKEND", "file"),
		StateFilePath: getEnv("STATE_FILE_PATH", "./data/household_state.json"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/chores.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "chores"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "chore_events"),

		Users:    splitList(getEnv("HOUSEHOLD_USERS", "Milou")),
		Currency: getEnv("CURRENCY", "EUR"),

		UndoDepth: getEnvInt("UNDO_DEPTH", 3),

		RolloverInterval: getEnvDuration("ROLLOVER_INTERVAL", 168*time.Hour),

		DefaultWeeklyAllowanceCents:   getEnvInt64("DEFAULT_WEEKLY_ALLOWANCE_CENTS", 200),
		DefaultTasksPerWeek:           getEnvInt("DEFAULT_TASKS_PER_WEEK", 7),
		DefaultBonusPerExtraTaskCents: getEnvInt64("DEFAULT_BONUS_PER_EXTRA_TASK_CENTS", 15),
		DefaultMaximumExtraTasks:      getEnvInt("DEFAULT_MAXIMUM_EXTRA_TASKS", 5),
	}

	return cfg
}

// DefaultSettings returns the allowance settings applied to accounts on
// first access.
func (c *Config) DefaultSettings() core.AllowanceSettings {
	return core.AllowanceSettings{
		WeeklyAllowanceCents:   core.Cents(c.DefaultWeeklyAllowanceCents),
		TasksPerWeek:           c.DefaultTasksPerWeek,
		BonusPerExtraTaskCents: core.Cents(c.DefaultBonusPerExtraTaskCents),
		MaximumExtraTasks:      c.DefaultMaximumExtraTasks,
	}
}

// FactoryConfig maps the backend selection onto the storage factory.
func (c *Config) FactoryConfig() storage.FactoryConfig {
	return storage.FactoryConfig{
		Type:          storage.BackendType(c.DataBackend),
		StateFilePath: c.StateFilePath,
		SQLiteDBPath:  c.SQLiteDBPath,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !storage.BackendType(c.DataBackend).IsValid() {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [file sqlite]", c.DataBackend))
	}

	switch storage.BackendType(c.DataBackend) {
	case storage.FileBackendType:
		if c.StateFilePath == "" {
			errors = append(errors, "state file path cannot be empty when using file backend")
		}
	case storage.SQLiteBackendType:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(c.Users) == 0 {
		errors = append(errors, "at least one household user must be configured")
	}
	for _, user := range c.Users {
		if strings.TrimSpace(user) == "" {
			errors = append(errors, "household user names cannot be blank")
			break
		}
	}

	if c.Currency == "" {
		errors = append(errors, "currency cannot be empty")
	}

	if c.UndoDepth < 1 {
		errors = append(errors, fmt.Sprintf("invalid undo depth %d: must be at least 1", c.UndoDepth))
	} else if c.UndoDepth > 100 {
		errors = append(errors, fmt.Sprintf("invalid undo depth %d: must be at most 100", c.UndoDepth))
	}

	if c.RolloverInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 minute", c.RolloverInterval))
	}

	if err := c.DefaultSettings().Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default allowance settings: %v", err))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
