package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bwservicing/certtrack/internal/config"
)

const envPrefix = "CERTTRACK"

var (
	configFile string
	envFile    string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "certtrack",
	Short:         "Compressor certificate and work order tracking",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	registerFlags(rootCmd.PersistentFlags(), config.NewConfigurationWithOptionsAndDefaults())

	rootCmd.AddCommand(serveCmd, migrateCmd, sqlCmd, exportCmd)
}

// registerFlags declares one flag per configuration field, with the
// configuration defaults as flag defaults.
func registerFlags(f *pflag.FlagSet, d *config.Configuration) {
	f.String("server-mode", d.Server.ServerMode, "server mode: dev or prod")
	f.Int("http-port", d.Server.HTTPPort, "HTTP listen port")

	f.String("storage-backend", d.Storage.Backend, "storage backend: sql or rest")
	f.String("storage-dialect", d.Storage.Dialect, "SQL dialect: duckdb, postgres or sqlite")
	f.String("storage-dsn", d.Storage.DSN, "SQL data source name")
	f.Bool("storage-auto-migrate", d.Storage.AutoMigrate, "apply migrations when the store is opened")
	f.Duration("storage-timeout", d.Storage.Timeout, "timeout of a single storage operation")
	f.String("rest-url", d.Storage.REST.URL, "REST backend base URL")
	f.String("rest-api-key", d.Storage.REST.APIKey, "REST backend API key")
	f.Duration("rest-timeout", d.Storage.REST.Timeout, "REST request timeout")
	f.Uint("rest-max-retries", d.Storage.REST.MaxRetries, "REST read retries")

	f.Bool("auth-enabled", d.Auth.Enabled, "require a bearer token on the API")
	f.String("auth-secret", d.Auth.Secret, "HS256 token secret")
	f.String("auth-issuer", d.Auth.Issuer, "required token issuer")

	f.String("certificate-prefix", d.Sequence.CertificatePrefix, "certificate number prefix")
	f.String("work-order-prefix", d.Sequence.WorkOrderPrefix, "work order number prefix")
	f.Float64("default-vat-rate", d.Sequence.DefaultVATRate, "VAT rate applied when a work order has none")
	f.Uint("max-write-attempts", d.Sequence.MaxWriteAttempts, "attempts of a write transaction on conflict")
	f.Int("workers", d.Workers.Count, "concurrent work order writes")

	f.String("log-format", d.LogFormat, "log format: console or json")
	f.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
}

// loadConfiguration resolves flags, environment, dotenv and config file, in
// that order of precedence, and validates the result.
func loadConfiguration(cmd *cobra.Command) (*config.Configuration, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, flags := range []*pflag.FlagSet{cmd.InheritedFlags(), cmd.LocalFlags()} {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := config.NewConfigurationWithOptionsAndDefaults(
		config.WithServer(config.Server{
			ServerMode: v.GetString("server-mode"),
			HTTPPort:   v.GetInt("http-port"),
		}),
		config.WithStorage(config.Storage{
			Backend:     v.GetString("storage-backend"),
			Dialect:     v.GetString("storage-dialect"),
			DSN:         v.GetString("storage-dsn"),
			AutoMigrate: v.GetBool("storage-auto-migrate"),
			Timeout:     v.GetDuration("storage-timeout"),
			REST: config.REST{
				URL:        v.GetString("rest-url"),
				APIKey:     v.GetString("rest-api-key"),
				Timeout:    v.GetDuration("rest-timeout"),
				MaxRetries: v.GetUint("rest-max-retries"),
			},
		}),
		config.WithAuth(config.Auth{
			Enabled: v.GetBool("auth-enabled"),
			Secret:  v.GetString("auth-secret"),
			Issuer:  v.GetString("auth-issuer"),
		}),
		config.WithSequence(config.Sequence{
			CertificatePrefix: v.GetString("certificate-prefix"),
			WorkOrderPrefix:   v.GetString("work-order-prefix"),
			DefaultVATRate:    v.GetFloat64("default-vat-rate"),
			MaxWriteAttempts:  v.GetUint("max-write-attempts"),
		}),
		config.WithWorkers(config.Workers{Count: v.GetInt("workers")}),
		config.WithLogFormat(v.GetString("log-format")),
		config.WithLogLevel(v.GetString("log-level")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	zap.S().Named("config").Debugw("configuration loaded", "config", cfg.DebugMap())

	return cfg, nil
}

func newLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
