package config

import (
	"fmt"

	"github.com/creasty/defaults"
)

type ConfigurationOption func(*Configuration)

// NewConfigurationWithOptionsAndDefaults returns a configuration with every
// default tag applied and then opts.
func NewConfigurationWithOptionsAndDefaults(opts ...ConfigurationOption) *Configuration {
	c := &Configuration{}
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("invalid configuration defaults: %v", err))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithServer(s Server) ConfigurationOption {
	return func(c *Configuration) { c.Server = s }
}

func WithStorage(s Storage) ConfigurationOption {
	return func(c *Configuration) { c.Storage = s }
}

func WithAuth(a Auth) ConfigurationOption {
	return func(c *Configuration) { c.Auth = a }
}

func WithSequence(s Sequence) ConfigurationOption {
	return func(c *Configuration) { c.Sequence = s }
}

func WithWorkers(w Workers) ConfigurationOption {
	return func(c *Configuration) { c.Workers = w }
}

func WithLogFormat(format string) ConfigurationOption {
	return func(c *Configuration) { c.LogFormat = format }
}

func WithLogLevel(level string) ConfigurationOption {
	return func(c *Configuration) { c.LogLevel = level }
}

// DebugMap flattens the configuration for logging. Fields tagged
// debugmap:"hidden" are reported only as set or empty.
func (c *Configuration) DebugMap() map[string]any {
	return map[string]any{
		"Server.ServerMode":          c.Server.ServerMode,
		"Server.HTTPPort":            c.Server.HTTPPort,
		"Storage.Backend":            c.Storage.Backend,
		"Storage.Dialect":            c.Storage.Dialect,
		"Storage.DSN":                hidden(c.Storage.DSN),
		"Storage.AutoMigrate":        c.Storage.AutoMigrate,
		"Storage.Timeout":            c.Storage.Timeout.String(),
		"Storage.REST.URL":           c.Storage.REST.URL,
		"Storage.REST.APIKey":        hidden(c.Storage.REST.APIKey),
		"Storage.REST.Timeout":       c.Storage.REST.Timeout.String(),
		"Storage.REST.MaxRetries":    c.Storage.REST.MaxRetries,
		"Auth.Enabled":               c.Auth.Enabled,
		"Auth.Secret":                hidden(c.Auth.Secret),
		"Auth.Issuer":                c.Auth.Issuer,
		"Sequence.CertificatePrefix": c.Sequence.CertificatePrefix,
		"Sequence.WorkOrderPrefix":   c.Sequence.WorkOrderPrefix,
		"Sequence.DefaultVATRate":    c.Sequence.DefaultVATRate,
		"Sequence.MaxWriteAttempts":  c.Sequence.MaxWriteAttempts,
		"Workers.Count":              c.Workers.Count,
		"LogFormat":                  c.LogFormat,
		"LogLevel":                   c.LogLevel,
	}
}

func hidden(v string) string {
	if v == "" {
		return "(empty)"
	}
	return "(sensitive)"
}
