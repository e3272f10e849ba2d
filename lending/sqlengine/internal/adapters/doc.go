// Package adapters provides the database adapters of the SQL lending stores.
//
// PGXAdapter wraps a pgxpool.Pool (with an optional replica pool for eventually consistent
// reads), SQLAdapter wraps a database/sql DB (lib/pq or modernc sqlite) and SQLXAdapter
// wraps a sqlx.DB. All of them run plain SQL strings on the connection or inside a
// transaction started with BeginTx.
package adapters
