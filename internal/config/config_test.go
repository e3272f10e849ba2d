package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/internal/config"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func Test_FromEnv_Defaults(t *testing.T) {
	// act
	cfg, err := config.FromEnv(envOf(nil))

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
	assert.Equal(t, "library.db", cfg.SQLitePath)
	assert.Equal(t, config.DriverPGX, cfg.PostgresDriver)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.False(t, cfg.OTelEnabled)
}

func Test_FromEnv_ReadsEveryVariable(t *testing.T) {
	// arrange
	env := envOf(map[string]string{
		config.EnvBackend:            "Postgres",
		config.EnvSnapshotPath:       "/tmp/snap.json",
		config.EnvSQLitePath:         "/tmp/lib.db",
		config.EnvPostgresDSN:        "postgres://u:p@db:5432/library",
		config.EnvPostgresDriver:     "SQLX",
		config.EnvPostgresReplicaDSN: "postgres://u:p@replica:5432/library",
		config.EnvPolicyFile:         "policy.yaml",
		config.EnvOTelEnabled:        "true",
		config.EnvOTelEndpoint:       "collector:4317",
		config.EnvRetryAttempts:      "5",
	})

	// act
	cfg, err := config.FromEnv(env)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.Config{
		Backend:            config.BackendPostgres,
		SnapshotPath:       "/tmp/snap.json",
		SQLitePath:         "/tmp/lib.db",
		PostgresDSN:        "postgres://u:p@db:5432/library",
		PostgresDriver:     config.DriverSQLX,
		PostgresReplicaDSN: "postgres://u:p@replica:5432/library",
		PolicyFile:         "policy.yaml",
		OTelEnabled:        true,
		OTelEndpoint:       "collector:4317",
		RetryAttempts:      5,
	}, cfg)
}

func Test_FromEnv_RejectsInvalidSettings(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{config.EnvBackend: "mysql"}},
		{name: "postgres without dsn", env: map[string]string{config.EnvBackend: "postgres"}},
		{name: "unknown driver", env: map[string]string{config.EnvPostgresDriver: "odbc"}},
		{name: "otel flag not a boolean", env: map[string]string{config.EnvOTelEnabled: "maybe"}},
		{name: "retry attempts not a number", env: map[string]string{config.EnvRetryAttempts: "many"}},
		{name: "retry attempts zero", env: map[string]string{config.EnvRetryAttempts: "0"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.FromEnv(envOf(tc.env))

			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func Test_Load_SeedsEnvironmentFromDotEnvFile(t *testing.T) {
	// arrange
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LIBRARY_BACKEND=memory\nLIBRARY_RETRY_ATTEMPTS=7\n"), 0o600))

	t.Setenv(config.EnvBackend, "")
	t.Setenv(config.EnvRetryAttempts, "2")
	require.NoError(t, os.Unsetenv(config.EnvBackend))

	// act
	cfg, err := config.Load(path)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, 2, cfg.RetryAttempts, "variables already set win over the file")
}

func Test_Load_IgnoresMissingFile(t *testing.T) {
	t.Setenv(config.EnvBackend, "memory")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
}
