// Package config loads and validates the service configuration.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Journal    JournalConfig    `mapstructure:"journal" validate:"required"`
	Lending    LendingConfig    `mapstructure:"lending"`
	Membership MembershipConfig `mapstructure:"membership" validate:"required"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" validate:"required"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// HTTPConfig controls request throttling. A zero RateLimit disables it.
type HTTPConfig struct {
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
}

// JournalConfig selects where lending operations are journaled.
type JournalConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres sqlite3"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
}

// LendingConfig sets loan terms. A zero LoanPeriod means the built-in 14 days.
type LendingConfig struct {
	LoanPeriod time.Duration `mapstructure:"loan_period" validate:"gte=0"`
}

// MembershipConfig lists the roles a user may register with.
type MembershipConfig struct {
	Roles []string `mapstructure:"roles" validate:"min=1,dive,required"`
}

// TelemetryConfig configures trace export. An empty OTLPEndpoint keeps tracing in process.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"omitempty,url"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
}
