package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/engine"
	"github.com/librarydesk/lending-engine/lending/memengine"
	"github.com/librarydesk/lending-engine/testutil/fixtures"
	"github.com/librarydesk/lending-engine/testutil/observability/testdoubles"
)

var startOfTest = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) AdvanceDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.AddDate(0, 0, days)
}

// faultyBackend wraps a memengine.Store and injects failures.
type faultyBackend struct {
	*memengine.Store

	mu                sync.Mutex
	calls             int
	transientFailures int
	memberUpdateErr   error
	commitErr         error
}

func (b *faultyBackend) InTransaction(ctx context.Context, fn lending.TxFunc) error {
	b.mu.Lock()
	b.calls++
	if b.transientFailures > 0 {
		b.transientFailures--
		b.mu.Unlock()

		return fmt.Errorf("%w: could not serialize access", lending.ErrTransient)
	}
	memberUpdateErr, commitErr := b.memberUpdateErr, b.commitErr
	b.mu.Unlock()

	err := b.Store.InTransaction(ctx, func(ctx context.Context, tx lending.Stores) error {
		if memberUpdateErr != nil {
			tx.Members = failingMembers{MembershipStore: tx.Members, err: memberUpdateErr}
		}

		return fn(ctx, tx)
	})
	if err == nil && commitErr != nil {
		return commitErr
	}

	return err
}

func (b *faultyBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.calls
}

type failingMembers struct {
	lending.MembershipStore
	err error
}

func (f failingMembers) UpdateMember(context.Context, lending.Member) error {
	return f.err
}

type harness struct {
	store   *memengine.Store
	faulty  *faultyBackend
	engine  *engine.Engine
	clock   *testClock
	logger  *testdoubles.LoggerSpy
	metrics *testdoubles.MetricsCollectorSpy
	tracing *testdoubles.TracingCollectorSpy
}

func newHarness(t *testing.T, options ...engine.Option) *harness {
	t.Helper()

	store, err := memengine.New()
	require.NoError(t, err)

	h := &harness{store: store}

	return h.build(t, h.store, options...)
}

// newFaultyHarness builds an engine whose backend injects the failures configured on h.faulty.
func newFaultyHarness(t *testing.T, options ...engine.Option) *harness {
	t.Helper()

	store, err := memengine.New()
	require.NoError(t, err)

	h := &harness{store: store, faulty: &faultyBackend{Store: store}}

	return h.build(t, h.faulty, options...)
}

func (h *harness) build(t *testing.T, backend lending.Backend, options ...engine.Option) *harness {
	t.Helper()

	h.clock = &testClock{now: startOfTest}
	h.logger = testdoubles.NewLoggerSpy()
	h.metrics = testdoubles.NewMetricsCollectorSpy()
	h.tracing = testdoubles.NewTracingCollectorSpy()

	var sequence atomic.Int64
	base := []engine.Option{
		engine.WithClock(h.clock.Now),
		engine.WithRecordIDGenerator(func() string { return fmt.Sprintf("rec-%d", sequence.Add(1)) }),
		engine.WithContextualLogger(h.logger),
		engine.WithMetrics(h.metrics),
		engine.WithTracing(h.tracing),
		engine.WithBaseDelay(0),
	}

	e, err := engine.New(backend, append(base, options...)...)
	require.NoError(t, err)
	h.engine = e

	return h
}

func (h *harness) seedBook(t *testing.T, isbn, title string, copies int) lending.Book {
	t.Helper()

	book := fixtures.Book(isbn, title, copies)
	require.NoError(t, h.store.Stores().Catalog.CreateBook(context.Background(), book))

	return book
}

func (h *harness) seedMember(t *testing.T, id string, membershipType lending.MembershipType) lending.Member {
	t.Helper()

	member := fixtures.Member(id, membershipType, h.clock.Now())
	require.NoError(t, h.store.Stores().Members.CreateMember(context.Background(), member))

	return member
}

func (h *harness) book(t *testing.T, isbn string) lending.Book {
	t.Helper()

	book, err := h.store.Stores().Catalog.GetBook(context.Background(), isbn)
	require.NoError(t, err)

	return book
}

func (h *harness) member(t *testing.T, id string) lending.Member {
	t.Helper()

	member, err := h.store.Stores().Members.GetMember(context.Background(), id)
	require.NoError(t, err)

	return member
}

func (h *harness) records(t *testing.T) []lending.BorrowRecord {
	t.Helper()

	records, err := h.store.Stores().Ledger.ListAll(context.Background())
	require.NoError(t, err)

	return records
}

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func recordIDs(records []lending.BorrowRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.RecordID)
	}

	return out
}

var errDiskFull = errors.New("disk full")
