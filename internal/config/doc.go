// Package config defines the configuration structure of certtrack.
//
// Configuration is organized into sections. Defaults come from `default`
// struct tags applied with creasty/defaults, constraints from `validate` tags
// checked by go-playground/validator plus a few cross-field rules in
// Validate.
//
// # Configuration Structure
//
//	Configuration
//	├── Server         - HTTP server settings
//	├── Storage        - Backend choice and its connection settings
//	│   └── REST       - PostgREST-style backend
//	├── Auth           - Bearer token settings
//	├── Sequence       - Number prefixes, VAT and write retries
//	├── Workers        - Scheduler size
//	├── LogFormat      - Logging format
//	└── LogLevel       - Logging verbosity
//
// # Storage Configuration
//
//	┌─────────────┬──────────┬────────────────────────────────────────────┐
//	│ Field       │ Default  │ Description                                │
//	├─────────────┼──────────┼────────────────────────────────────────────┤
//	│ Backend     │ "sql"    │ "sql" or "rest", chosen once at start      │
//	│ Dialect     │ "duckdb" │ duckdb, postgres or sqlite                 │
//	│ DSN         │ ""       │ Required except for in-memory duckdb       │
//	│ AutoMigrate │ true     │ Apply embedded migrations on open          │
//	│ REST.URL    │ ""       │ Required for the rest backend              │
//	│ REST.APIKey │ ""       │ Sent as apikey and bearer token            │
//	└─────────────┴──────────┴────────────────────────────────────────────┘
//
// # Sequence Configuration
//
//	┌───────────────────┬─────────┬──────────────────────────────────────┐
//	│ Field             │ Default │ Description                          │
//	├───────────────────┼─────────┼──────────────────────────────────────┤
//	│ CertificatePrefix │ "BWS-"  │ Certificate number prefix            │
//	│ WorkOrderPrefix   │ "WO-"   │ Work order number prefix             │
//	│ DefaultVATRate    │ 20      │ Percent, used when a work order has  │
//	│                   │         │ no vat_rate                          │
//	│ MaxWriteAttempts  │ 3       │ Attempts of a transaction on conflict│
//	└───────────────────┴─────────┴──────────────────────────────────────┘
//
// # Code Generation
//
// The functional options and DebugMap live in zz_generated.configuration.go,
// produced by optgen from the go:generate directive in config.go:
//
//	go generate ./internal/config
//
// Helpers include:
//
//   - NewConfigurationWithOptionsAndDefaults(...ConfigurationOption)
//   - WithServer(Server), WithStorage(Storage), WithAuth(Auth), etc.
//   - DebugMap() - map for debug logging (respects debugmap tags)
//
// # Usage Example
//
//	cfg := config.NewConfigurationWithOptionsAndDefaults(
//	    config.WithStorage(config.Storage{
//	        Backend: "sql",
//	        Dialect: "postgres",
//	        DSN:     "postgres://bws@localhost/certtrack",
//	    }),
//	    config.WithLogLevel("debug"),
//	)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Debug Logging
//
// DebugMap flattens the configuration for structured logging. Fields tagged
// `debugmap:"hidden"` (DSN, API key, secret) are reported only as set or
// empty.
package config
