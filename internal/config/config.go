package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvBackend            = "LIBRARY_BACKEND"
	EnvSnapshotPath       = "LIBRARY_SNAPSHOT_PATH"
	EnvSQLitePath         = "LIBRARY_SQLITE_PATH"
	EnvPostgresDSN        = "LIBRARY_POSTGRES_DSN"
	EnvPostgresDriver     = "LIBRARY_POSTGRES_DRIVER"
	EnvPostgresReplicaDSN = "LIBRARY_POSTGRES_REPLICA_DSN"
	EnvPolicyFile         = "LIBRARY_POLICY_FILE"
	EnvOTelEnabled        = "LIBRARY_OTEL_ENABLED"
	EnvOTelEndpoint       = "LIBRARY_OTEL_ENDPOINT"
	EnvRetryAttempts      = "LIBRARY_RETRY_ATTEMPTS"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// PostgreSQL client libraries.
const (
	DriverPGX  = "pgx"
	DriverSQL  = "sql"
	DriverSQLX = "sqlx"
)

const (
	defaultBackend       = BackendSQLite
	defaultSQLitePath    = "library.db"
	defaultSnapshotPath  = "library.json"
	defaultDriver        = DriverPGX
	defaultOTelEndpoint  = "localhost:4317"
	defaultRetryAttempts = 3
)

// ErrInvalidConfig is returned when the environment holds unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the runtime settings of the librarian command.
type Config struct {
	Backend            string `validate:"oneof=memory sqlite postgres"`
	SnapshotPath       string
	SQLitePath         string `validate:"required_if=Backend sqlite"`
	PostgresDSN        string `validate:"required_if=Backend postgres"`
	PostgresDriver     string `validate:"oneof=pgx sql sqlx"`
	PostgresReplicaDSN string
	PolicyFile         string
	OTelEnabled        bool
	OTelEndpoint       string `validate:"required_if=OTelEnabled true"`
	RetryAttempts      int    `validate:"gte=1,lte=20"`
}

// Default returns the settings used when the environment is empty.
func Default() Config {
	return Config{
		Backend:        defaultBackend,
		SnapshotPath:   defaultSnapshotPath,
		SQLitePath:     defaultSQLitePath,
		PostgresDriver: defaultDriver,
		OTelEndpoint:   defaultOTelEndpoint,
		RetryAttempts:  defaultRetryAttempts,
	}
}

// Load seeds the process environment from the given .env files (./.env when none are given)
// and returns FromEnv(os.Getenv). Missing files are ignored, variables already set win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, file, err)
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset variables.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	cfg.Backend = strings.ToLower(withDefault(getenv(EnvBackend), cfg.Backend))
	cfg.SnapshotPath = withDefault(getenv(EnvSnapshotPath), cfg.SnapshotPath)
	cfg.SQLitePath = withDefault(getenv(EnvSQLitePath), cfg.SQLitePath)
	cfg.PostgresDSN = strings.TrimSpace(getenv(EnvPostgresDSN))
	cfg.PostgresDriver = strings.ToLower(withDefault(getenv(EnvPostgresDriver), cfg.PostgresDriver))
	cfg.PostgresReplicaDSN = strings.TrimSpace(getenv(EnvPostgresReplicaDSN))
	cfg.PolicyFile = strings.TrimSpace(getenv(EnvPolicyFile))
	cfg.OTelEndpoint = withDefault(getenv(EnvOTelEndpoint), cfg.OTelEndpoint)

	if raw := strings.TrimSpace(getenv(EnvOTelEnabled)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, EnvOTelEnabled, raw)
		}
		cfg.OTelEnabled = enabled
	}

	if raw := strings.TrimSpace(getenv(EnvRetryAttempts)); raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvRetryAttempts, raw)
		}
		cfg.RetryAttempts = attempts
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the settings against each other.
func (c Config) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s fails %q (got %v)", fieldErr.Field(), fieldErr.Tag(), fieldErr.Value()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	return validate
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return strings.TrimSpace(value)
}
