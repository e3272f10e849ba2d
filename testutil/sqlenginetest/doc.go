// Package sqlenginetest provides test utilities for running the SQL lending store against
// every supported database adapter.
//
// The adapter is selected with the ADAPTER_TYPE environment variable:
//
//   - "sqlite" (default): a fresh database file in the test's temp dir
//   - "pgx.pool", "sql.db", "sqlx.db": PostgreSQL at LENDING_TEST_POSTGRES_DSN
//
// PostgreSQL tests are skipped when the DSN is unset or the server is unreachable.
//
// Usage:
//
//	wrapper := sqlenginetest.CreateWrapper(t)
//	store := wrapper.Store()
package sqlenginetest
