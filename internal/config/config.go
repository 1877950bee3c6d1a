// Package config provides the runtime configuration of the chat relay: the
// defaults, environment loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the server configuration settings.
type Config struct {
	Port            string        `validate:"required"`
	AllowedOrigins  []string      `validate:"dive,required"`
	MaxMessageSize  int64         `validate:"gt=0"`
	MailboxSize     int           `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	LogFormat       string        `validate:"oneof=text json"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultMailboxSize     = 256
	defaultShutdownTimeout = 10 * time.Second
	defaultLogFormat       = "text"
	defaultLogLevel        = "info"
)

var validate = validator.New()

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		MailboxSize:     defaultMailboxSize,
		ShutdownTimeout: defaultShutdownTimeout,
		LogFormat:       defaultLogFormat,
		LogLevel:        defaultLogLevel,
	}
}

// Sanitize replaces zero or out-of-range values with their defaults and
// normalizes the port and origin list.
func (c Config) Sanitize() Config {
	if c.Port == "" {
		c.Port = defaultPort
	} else if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = defaultMailboxSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins

	return c
}

// Validate checks c against its field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s (%s=%s): %w", fe.Field(), fe.Tag(), fe.Param(), err)
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (or ".env" when none
// are given) into the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Debug("No env file found, relying on environment variables", "file", f)
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
		slog.Debug("Loaded environment variables", "file", f)
	}
	return nil
}

// FromEnv creates a Config from environment variables. Unset or invalid
// values fall back to the defaults.
func FromEnv() Config {
	cfg := Default()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = ParseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}
	if mailbox := os.Getenv("MAILBOX_SIZE"); mailbox != "" {
		cfg.MailboxSize = parseIntValue(mailbox, cfg.MailboxSize)
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg.Sanitize()
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
