package adapters

import "context"

// Querier runs SQL on a connection pool or inside a transaction.
type Querier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the database operations needed by the SQL lending stores.
type DBAdapter interface {
	Querier
	// QueryReplica runs a read on the replica when one is configured, otherwise on the primary.
	QueryReplica(ctx context.Context, query string) (DBRows, error)
	BeginTx(ctx context.Context) (TxAdapter, error)
}

// TxAdapter is an open transaction.
type TxAdapter interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
