package config

//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration Server Storage REST Auth Sequence Workers

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Configuration struct {
	Server    Server   `debugmap:"visible"`
	Storage   Storage  `debugmap:"visible"`
	Auth      Auth     `debugmap:"visible"`
	Sequence  Sequence `debugmap:"visible"`
	Workers   Workers  `debugmap:"visible"`
	LogFormat string   `debugmap:"visible" default:"console" validate:"oneof=console json"`
	LogLevel  string   `debugmap:"visible" default:"info" validate:"oneof=debug info warn error"`
}

type Server struct {
	ServerMode string `debugmap:"visible" default:"dev" validate:"oneof=dev prod"`
	HTTPPort   int    `debugmap:"visible" default:"8000" validate:"min=1,max=65535"`
}

// Storage picks the backend once at start. Backend "sql" uses Dialect and
// DSN; backend "rest" uses REST.
type Storage struct {
	Backend     string        `debugmap:"visible" default:"sql" validate:"oneof=sql rest"`
	Dialect     string        `debugmap:"visible" default:"duckdb" validate:"omitempty,oneof=duckdb postgres sqlite"`
	DSN         string        `debugmap:"hidden" default:""`
	AutoMigrate bool          `debugmap:"visible" default:"true"`
	REST        REST          `debugmap:"visible"`
	Timeout     time.Duration `debugmap:"visible" default:"10s"`
}

type REST struct {
	URL        string        `debugmap:"visible" validate:"omitempty,url"`
	APIKey     string        `debugmap:"hidden"`
	Timeout    time.Duration `debugmap:"visible" default:"10s"`
	MaxRetries uint          `debugmap:"visible" default:"3"`
}

type Auth struct {
	Enabled bool   `debugmap:"visible" default:"false"`
	Secret  string `debugmap:"hidden"`
	Issuer  string `debugmap:"visible" default:""`
}

type Sequence struct {
	CertificatePrefix string  `debugmap:"visible" default:"BWS-" validate:"required"`
	WorkOrderPrefix   string  `debugmap:"visible" default:"WO-" validate:"required"`
	DefaultVATRate    float64 `debugmap:"visible" default:"20" validate:"min=0,max=100"`
	MaxWriteAttempts  uint    `debugmap:"visible" default:"3" validate:"min=1"`
}

type Workers struct {
	Count int `debugmap:"visible" default:"4" validate:"min=1"`
}

// Validate checks field constraints and the cross-field rules between the
// backend and its settings.
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.Storage.Backend {
	case "sql":
		if c.Storage.Dialect == "" {
			return fmt.Errorf("invalid configuration: storage dialect is required for the sql backend")
		}
		if c.Storage.Dialect != "duckdb" && c.Storage.DSN == "" {
			return fmt.Errorf("invalid configuration: storage dsn is required for dialect %s", c.Storage.Dialect)
		}
	case "rest":
		if c.Storage.REST.URL == "" {
			return fmt.Errorf("invalid configuration: rest url is required for the rest backend")
		}
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("invalid configuration: auth secret is required when auth is enabled")
	}
	return nil
}
