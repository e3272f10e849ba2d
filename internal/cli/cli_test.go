package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/internal/config"
	"github.com/librarydesk/lending-engine/lending"
)

type result struct {
	stdout string
	stderr string
	code   int
}

// givenMemoryLibrary points every invocation of the test at the same snapshot file.
func givenMemoryLibrary(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(config.EnvBackend, config.BackendMemory)
	t.Setenv(config.EnvSnapshotPath, filepath.Join(dir, "library.json"))
	t.Setenv(config.EnvPolicyFile, "")
	t.Setenv(config.EnvOTelEnabled, "false")

	return dir
}

func run(t *testing.T, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	code := Execute(context.Background(), args, &stdout, &stderr)

	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()

	r := run(t, args...)
	require.Equal(t, exitOK, r.code, "stderr: %s", r.stderr)

	return r.stdout
}

func registerAndStock(t *testing.T) {
	t.Helper()

	mustRun(t, "member", "register", "--id", "M001", "--first", "Ada", "--last", "Lovelace", "--email", "ada@example.org")
	mustRun(t, "member", "register", "--id", "M002", "--first", "Alan", "--last", "Turing", "--email", "alan@example.org", "--type", "student")
	mustRun(t, "book", "add", "--isbn", "111", "--title", "Dune", "--author", "Frank Herbert", "--category", "Science Fiction")
}

func Test_Execute_BorrowAndReturn(t *testing.T) {
	// arrange
	givenMemoryLibrary(t)
	registerAndStock(t)

	// act
	borrowed := mustRun(t, "--json", "borrow", "M001", "111")

	var record lending.BorrowRecord
	require.NoError(t, json.Unmarshal([]byte(borrowed), &record))

	secondBorrow := run(t, "borrow", "M002", "111")
	returned := mustRun(t, "--json", "return", record.RecordID)
	againReturned := run(t, "return", record.RecordID)

	// assert
	assert.Equal(t, lending.StatusBorrowed, record.Status)
	assert.Equal(t, "M001", record.MemberID)

	assert.Equal(t, exitError, secondBorrow.code)
	assert.Contains(t, secondBorrow.stderr, "error [BookUnavailable]")

	var closed lending.BorrowRecord
	require.NoError(t, json.Unmarshal([]byte(returned), &closed))
	assert.Equal(t, lending.StatusReturned, closed.Status)
	assert.Equal(t, lending.Money(0), closed.FineAmount)

	assert.Equal(t, exitError, againReturned.code)
	assert.Contains(t, againReturned.stderr, "error [AlreadyReturned]")
}

func Test_Execute_CatalogCommands(t *testing.T) {
	// arrange
	givenMemoryLibrary(t)
	registerAndStock(t)

	// act
	mustRun(t, "book", "add", "--isbn", "222", "--title", "Neuromancer", "--author", "William Gibson", "--category", "Cyberpunk", "--published", "1984-07-01")
	copies := mustRun(t, "book", "copies", "111", "2")
	removed := mustRun(t, "book", "copies", "111", "-1")
	updated := mustRun(t, "book", "update", "222", "--publisher", "Ace")
	search := mustRun(t, "book", "search", "neuro")
	categories := mustRun(t, "book", "categories")
	mustRun(t, "book", "retire", "222")
	list := mustRun(t, "book", "list")
	missing := run(t, "book", "get", "999")

	// assert
	assert.Contains(t, copies, "3 of 3 available")
	assert.Contains(t, removed, "2 of 2 available")
	assert.Contains(t, updated, "Ace")
	assert.Contains(t, updated, "Neuromancer")
	assert.Contains(t, updated, "1984-07-01")
	assert.Contains(t, search, "William Gibson")
	assert.Equal(t, "Cyberpunk\nScience Fiction\n", categories)
	assert.Contains(t, list, "Dune")
	assert.NotContains(t, list, "Neuromancer")
	assert.Equal(t, exitError, missing.code)
	assert.Contains(t, missing.stderr, "error [NotFound]")
}

func Test_Execute_MemberCommands(t *testing.T) {
	// arrange
	givenMemoryLibrary(t)
	registerAndStock(t)

	// act
	duplicate := run(t, "member", "register", "--id", "M003", "--first", "Eve", "--last", "Other", "--email", "ADA@example.org")
	updated := mustRun(t, "member", "update", "M002", "--type", "premium", "--phone", "555-0199")
	stats := mustRun(t, "--json", "member", "stats")
	canBorrow := mustRun(t, "member", "can-borrow", "M001")
	mustRun(t, "member", "deactivate", "M001")
	cannotBorrow := mustRun(t, "member", "can-borrow", "M001")
	list := mustRun(t, "member", "list")
	unknownType := run(t, "member", "update", "M002", "--type", "gold")

	// assert
	assert.Equal(t, exitError, duplicate.code)
	assert.Contains(t, duplicate.stderr, "error [DuplicateKey]")

	assert.Contains(t, updated, "PREMIUM")
	assert.Contains(t, updated, "555-0199")

	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(stats), &counts))
	assert.Equal(t, map[string]int{"STANDARD": 1, "PREMIUM": 1, "STUDENT": 0, "FACULTY": 0}, counts)

	assert.Equal(t, "member M001 may borrow\n", canBorrow)
	assert.Equal(t, "member M001 may not borrow: membership is inactive\n", cannotBorrow)
	assert.NotContains(t, list, "M001")
	assert.Contains(t, list, "M002")

	assert.Equal(t, exitError, unknownType.code)
	assert.Contains(t, unknownType.stderr, "error [InvalidInput]")
}

func Test_Execute_LoansAndReports(t *testing.T) {
	// arrange
	dir := givenMemoryLibrary(t)
	registerAndStock(t)
	mustRun(t, "borrow", "M001", "111")

	exportPath := filepath.Join(dir, "stats.json")

	// act
	history := mustRun(t, "loans", "history", "M001")
	active := mustRun(t, "loans", "active", "M001")
	overdue := mustRun(t, "loans", "overdue")
	fines := mustRun(t, "loans", "fines", "M001")
	popularity := mustRun(t, "report", "popularity")
	exported := mustRun(t, "--json", "report", "stats", "--export", exportPath)

	// assert
	assert.Contains(t, history, "BORROWED")
	assert.Contains(t, active, "111")
	assert.Equal(t, "No borrow records found.\n", overdue)
	assert.Equal(t, "member M001 owes 0.00\n", fines)
	assert.Contains(t, popularity, "Frank Herbert")
	assert.Contains(t, exported, exportPath)

	content, err := os.ReadFile(exportPath)
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(content, &stats))
	assert.InDelta(t, 1.0, stats["activeLoans"], 0.0001)
	assert.InDelta(t, 2.0, stats["activeMembers"], 0.0001)
}

func Test_Execute_SQLiteBackendFlag(t *testing.T) {
	// arrange
	givenMemoryLibrary(t)
	t.Setenv(config.EnvSQLitePath, filepath.Join(t.TempDir(), "library.db"))

	// act
	migrated := mustRun(t, "--backend", "sqlite", "migrate")
	mustRun(t, "--backend", "sqlite", "book", "add", "--isbn", "111", "--title", "Dune", "--author", "Frank Herbert")
	found := mustRun(t, "--backend", "sqlite", "book", "get", "111")
	inMemory := run(t, "book", "get", "111")

	// assert
	assert.Equal(t, "schema of the sqlite backend is up to date\n", migrated)
	assert.Contains(t, found, "Frank Herbert")
	assert.Equal(t, exitError, inMemory.code, "the memory backend has its own data")
}

func Test_Execute_Failures(t *testing.T) {
	givenMemoryLibrary(t)

	testCases := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "unknown command", args: []string{"lend"}, contains: "unknown command"},
		{name: "missing argument", args: []string{"borrow", "M001"}, contains: "accepts 2 arg(s)"},
		{name: "missing required flag", args: []string{"book", "add", "--isbn", "111"}, contains: "required flag(s)"},
		{name: "invalid backend", args: []string{"--backend", "tape", "book", "list"}, contains: "invalid configuration"},
		{name: "invalid delta", args: []string{"book", "copies", "111", "many"}, contains: "error [InvalidInput]"},
		{name: "invalid date", args: []string{"book", "add", "--isbn", "111", "--title", "T", "--author", "A", "--published", "July"}, contains: "error [InvalidInput]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := run(t, tc.args...)

			assert.Equal(t, exitError, r.code)
			assert.Contains(t, r.stderr, tc.contains)
		})
	}
}
