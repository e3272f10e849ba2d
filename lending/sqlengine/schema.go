package sqlengine

import (
	"context"
	"time"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
	isbn             TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	author           TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	publisher        TEXT NOT NULL DEFAULT '',
	publication_date DATE,
	total_copies     INTEGER NOT NULL CHECK (total_copies >= 0),
	available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
	active           BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS members (
	id                TEXT PRIMARY KEY,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	membership_type   TEXT NOT NULL,
	membership_expiry DATE NOT NULL,
	borrowed_count    INTEGER NOT NULL DEFAULT 0 CHECK (borrowed_count >= 0),
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	registration_date DATE NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
	record_id         TEXT PRIMARY KEY,
	member_id         TEXT NOT NULL REFERENCES members (id),
	isbn              TEXT NOT NULL REFERENCES books (isbn),
	borrow_date       DATE NOT NULL,
	due_date          DATE NOT NULL,
	return_date       DATE,
	status            TEXT NOT NULL,
	fine_amount_cents BIGINT NOT NULL DEFAULT 0
)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
	isbn             TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	author           TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	publisher        TEXT NOT NULL DEFAULT '',
	publication_date TEXT,
	total_copies     INTEGER NOT NULL CHECK (total_copies >= 0),
	available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
	active           INTEGER NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS members (
	id                TEXT PRIMARY KEY,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	membership_type   TEXT NOT NULL,
	membership_expiry TEXT NOT NULL,
	borrowed_count    INTEGER NOT NULL DEFAULT 0 CHECK (borrowed_count >= 0),
	active            INTEGER NOT NULL DEFAULT 1,
	registration_date TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
	record_id         TEXT PRIMARY KEY,
	member_id         TEXT NOT NULL REFERENCES members (id),
	isbn              TEXT NOT NULL REFERENCES books (isbn),
	borrow_date       TEXT NOT NULL,
	due_date          TEXT NOT NULL,
	return_date       TEXT,
	status            TEXT NOT NULL,
	fine_amount_cents INTEGER NOT NULL DEFAULT 0
)`,
}

// Indexes are valid in both dialects.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_books_title ON books (title)`,
	`CREATE INDEX IF NOT EXISTS idx_books_author ON books (author)`,
	`CREATE INDEX IF NOT EXISTS idx_books_category ON books (category)`,
	`CREATE INDEX IF NOT EXISTS idx_members_name ON members (last_name, first_name)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_members_email ON members (lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_member ON borrow_records (member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_status ON borrow_records (status)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_due_date ON borrow_records (due_date)`,
}

// Migrate creates the tables and indexes when they do not exist yet. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.dialectName == DialectPostgres {
		statements = postgresSchema
	}
	statements = append(append([]string{}, statements...), indexes...)

	start := time.Now()
	for _, statement := range statements {
		if _, err := s.db.Exec(ctx, statement); err != nil {
			return s.failed(ctx, logMsgExecFailed, statement, err)
		}
	}

	s.logInfo(ctx, logMsgMigrated,
		logAttrDialect, s.dialectName,
		logAttrStatements, len(statements),
		logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}
