package sqlengine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/librarydesk/lending-engine/lending"
)

func Test_mapError_ClassifiesPostgresErrors(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		kind      lending.ErrorKind
		transient bool
	}{
		{"pgx unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, lending.KindDuplicateKey, false},
		{"pq unique violation", &pq.Error{Code: pgerrcode.UniqueViolation}, lending.KindDuplicateKey, false},
		{"pgx serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, lending.KindPersistenceFailure, true},
		{"pq deadlock", &pq.Error{Code: pgerrcode.DeadlockDetected}, lending.KindPersistenceFailure, true},
		{"wrapped lock not available", fmt.Errorf("select: %w", &pgconn.PgError{Code: pgerrcode.LockNotAvailable}), lending.KindPersistenceFailure, true},
		{"foreign key violation", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, lending.KindPersistenceFailure, false},
		{"connection refused", errors.New("dial tcp: connection refused"), lending.KindPersistenceFailure, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapError(tc.err)

			assert.Equal(t, tc.kind, lending.KindOf(mapped))
			assert.Equal(t, tc.transient, lending.IsTransient(mapped))
			assert.ErrorIs(t, mapped, tc.err)
		})
	}
}

func Test_describeDuplicate(t *testing.T) {
	duplicate := describeDuplicate(mapError(&pq.Error{Code: pgerrcode.UniqueViolation}), "isbn 111")
	other := describeDuplicate(mapError(errors.New("disk I/O error")), "isbn 111")

	assert.EqualError(t, duplicate, "duplicate key: isbn 111")
	assert.ErrorIs(t, other, lending.ErrPersistenceFailure)
	assert.NotErrorIs(t, other, lending.ErrDuplicateKey)
}

func Test_dateColumn_ScansEveryDriverRepresentation(t *testing.T) {
	expected := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, src := range []any{
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600)),
		"2025-03-01",
		"2025-03-01T00:00:00Z",
		[]byte("2025-03-01"),
	} {
		var scanned time.Time

		err := dateColumn{dest: &scanned}.Scan(src)

		assert.NoError(t, err, "%v", src)
		assert.Equal(t, expected, scanned, "%v", src)
	}

	var (
		publication time.Time
		returned    = &expected
	)

	assert.Error(t, dateColumn{dest: &publication}.Scan(nil))
	assert.NoError(t, dateColumn{dest: &publication, nullable: true}.Scan(nil))
	assert.True(t, publication.IsZero())
	assert.NoError(t, nullDateColumn{dest: &returned}.Scan(nil))
	assert.Nil(t, returned)
	assert.Error(t, dateColumn{dest: &publication}.Scan(42))
	assert.Nil(t, nullableDateValue(time.Time{}))
	assert.Equal(t, "2025-03-01", nullableDateValue(expected))
}

func Test_SQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("/tmp/library.db")

	assert.Equal(t,
		"file:/tmp/library.db?_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29&_pragma=journal_mode%28WAL%29&_txlock=immediate",
		dsn)
}
