package memengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

const (
	logMsgCommitted        = "memengine: unit of work committed"
	logMsgCommitRejected   = "memengine: unit of work rejected at commit"
	logMsgSnapshotFailed   = "memengine: failed to persist snapshot"
	logMsgSnapshotLoaded   = "memengine: snapshot loaded"
	logAttrError           = "error"
	logAttrWrites          = "writes"
	logAttrDurationMS      = "duration_ms"
	logAttrPath            = "path"
	logAttrBooks           = "books"
	logAttrMembers         = "members"
	logAttrRecords         = "records"
	keyPrefixBook          = "book:"
	keyPrefixMember        = "member:"
	keyPrefixRecord        = "record:"
	defaultSnapshotVersion = 1
)

// ErrEmptySnapshotPath is returned when an empty snapshot path is supplied.
var ErrEmptySnapshotPath = errors.New("snapshot path must not be empty")

type state struct {
	books   map[string]lending.Book
	members map[string]lending.Member
	records map[string]lending.BorrowRecord
}

func newState() state {
	return state{
		books:   map[string]lending.Book{},
		members: map[string]lending.Member{},
		records: map[string]lending.BorrowRecord{},
	}
}

// overlay holds the writes of one unit of work.
type overlay struct {
	state
	created map[string]struct{}
}

func newOverlay() *overlay {
	return &overlay{state: newState(), created: map[string]struct{}{}}
}

func (o *overlay) writes() int {
	return len(o.books) + len(o.members) + len(o.records)
}

// Store is an in-memory lending.Backend. The zero value is not usable, use New or Open.
type Store struct {
	mu           sync.RWMutex
	state        state
	logger       lending.Logger
	snapshotPath string
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store.
//
// Debug level: committed units of work with timing
// Warn level: units of work rejected at commit time (uniqueness conflicts)
// Error level: snapshot persistence failures.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithSnapshotFile makes the Store persist its full state to path after every commit.
// Open uses this option and additionally loads an existing snapshot.
func WithSnapshotFile(path string) Option {
	return func(s *Store) error {
		if path == "" {
			return ErrEmptySnapshotPath
		}

		s.snapshotPath = path

		return nil
	}
}

// New creates an empty Store with optional configuration.
func New(options ...Option) (*Store, error) {
	s := &Store{state: newState()}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Open creates a Store backed by the snapshot file at path. A missing file yields an empty library.
func Open(path string, options ...Option) (*Store, error) {
	s, err := New(append(options, WithSnapshotFile(path))...)
	if err != nil {
		return nil, err
	}

	snapshot, found, err := LoadSnapshotFile(path)
	if err != nil {
		return nil, err
	}

	if found {
		if err := s.ImportSnapshot(snapshot); err != nil {
			return nil, err
		}

		if s.logger != nil {
			s.logger.Debug(logMsgSnapshotLoaded,
				logAttrPath, path,
				logAttrBooks, len(snapshot.Books),
				logAttrMembers, len(snapshot.Members),
				logAttrRecords, len(snapshot.Records))
		}
	}

	return s, nil
}

// Stores returns stores whose every write is its own unit of work.
func (s *Store) Stores() lending.Stores {
	v := &view{store: s}
	return lending.Stores{Catalog: v, Members: v, Ledger: v}
}

// InTransaction runs fn as one unit of work.
func (s *Store) InTransaction(ctx context.Context, fn lending.TxFunc) error {
	return s.runTx(ctx, func(tx *view) error {
		return fn(ctx, lending.Stores{Catalog: tx, Members: tx, Ledger: tx})
	})
}

func (s *Store) runTx(ctx context.Context, fn func(tx *view) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &view{store: s, staged: newOverlay()}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.staged.writes() == 0 {
		return nil
	}

	return s.commit(tx.staged)
}

func (s *Store) commit(staged *overlay) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConflicts(staged); err != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCommitRejected, logAttrError, err.Error())
		}

		return err
	}

	if s.snapshotPath != "" {
		next := s.state.merged(staged)
		if err := SaveSnapshotFile(s.snapshotPath, snapshotFromState(next)); err != nil {
			if s.logger != nil {
				s.logger.Error(logMsgSnapshotFailed, logAttrError, err.Error(), logAttrPath, s.snapshotPath)
			}

			return errors.Join(lending.ErrCommitFailed, err)
		}

		s.state = next
	} else {
		s.state.apply(staged)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgCommitted,
			logAttrWrites, staged.writes(),
			logAttrDurationMS, toMilliseconds(time.Since(start)))
	}

	return nil
}

// checkConflicts rejects creations that raced with another unit of work. Callers hold s.mu.
func (s *Store) checkConflicts(staged *overlay) error {
	for key := range staged.created {
		switch {
		case strings.HasPrefix(key, keyPrefixBook):
			if _, exists := s.state.books[strings.TrimPrefix(key, keyPrefixBook)]; exists {
				return fmt.Errorf("%w: isbn %s", lending.ErrDuplicateKey, strings.TrimPrefix(key, keyPrefixBook))
			}
		case strings.HasPrefix(key, keyPrefixMember):
			if _, exists := s.state.members[strings.TrimPrefix(key, keyPrefixMember)]; exists {
				return fmt.Errorf("%w: member id %s", lending.ErrDuplicateKey, strings.TrimPrefix(key, keyPrefixMember))
			}
		case strings.HasPrefix(key, keyPrefixRecord):
			if _, exists := s.state.records[strings.TrimPrefix(key, keyPrefixRecord)]; exists {
				return fmt.Errorf("%w: record id %s", lending.ErrDuplicateKey, strings.TrimPrefix(key, keyPrefixRecord))
			}
		}
	}

	for id, member := range staged.members {
		for otherID, other := range s.state.members {
			if otherID != id && strings.EqualFold(other.Email, member.Email) {
				return fmt.Errorf("%w: email %s", lending.ErrDuplicateKey, member.Email)
			}
		}
	}

	return nil
}

func (st state) apply(staged *overlay) {
	for k, v := range staged.books {
		st.books[k] = v
	}

	for k, v := range staged.members {
		st.members[k] = v
	}

	for k, v := range staged.records {
		st.records[k] = v
	}
}

func (st state) merged(staged *overlay) state {
	next := st.clone()
	next.apply(staged)

	return next
}

func (st state) clone() state {
	next := state{
		books:   make(map[string]lending.Book, len(st.books)),
		members: make(map[string]lending.Member, len(st.members)),
		records: make(map[string]lending.BorrowRecord, len(st.records)),
	}

	for k, v := range st.books {
		next.books[k] = v
	}

	for k, v := range st.members {
		next.members[k] = v
	}

	for k, v := range st.records {
		next.records[k] = cloneRecord(v)
	}

	return next
}

func cloneRecord(r lending.BorrowRecord) lending.BorrowRecord {
	if r.ReturnDate != nil {
		returnDate := *r.ReturnDate
		r.ReturnDate = &returnDate
	}

	return r
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
