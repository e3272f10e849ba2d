package sqlenginetest

import "os"

// EnvPostgresDSN names the environment variable holding the PostgreSQL test database DSN.
const EnvPostgresDSN = "LENDING_TEST_POSTGRES_DSN"

// PostgresDSN returns the DSN of the PostgreSQL test database, or "" when none is configured.
func PostgresDSN() string {
	return os.Getenv(EnvPostgresDSN)
}
