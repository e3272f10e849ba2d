// Package sqlengine implements the lending stores on a relational database.
//
// PostgreSQL is supported through pgx (optionally with a read replica), database/sql with
// lib/pq, and sqlx. SQLite is supported through database/sql with the modernc.org/sqlite
// driver. Queries are built with goqu for the matching dialect.
//
// Units of work run in a database transaction. On PostgreSQL the rows read for an update
// are locked with SELECT ... FOR UPDATE; SQLite serializes write transactions itself.
// Driver errors are mapped onto the lending error kinds: unique violations become
// lending.ErrDuplicateKey, serialization failures, deadlocks and busy databases become
// lending.ErrTransient, everything else lending.ErrPersistenceFailure.
package sqlengine
