package memengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/librarydesk/lending-engine/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedSnapshotVersion is returned when a snapshot file was written by an incompatible version.
var ErrUnsupportedSnapshotVersion = errors.New("unsupported snapshot version")

// Snapshot is the serialisable representation of the in-memory state.
type Snapshot struct {
	Version int                    `json:"version"`
	Books   []lending.Book         `json:"books"`
	Members []lending.Member       `json:"members"`
	Records []lending.BorrowRecord `json:"records"`
}

// ExportSnapshot returns a consistent copy of the full state, sorted by key.
func (s *Store) ExportSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return snapshotFromState(s.state)
}

// ImportSnapshot replaces the full state. Duplicate keys are rejected and nothing is replaced.
func (s *Store) ImportSnapshot(snapshot Snapshot) error {
	next, err := stateFromSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next

	return nil
}

func snapshotFromState(st state) Snapshot {
	snapshot := Snapshot{
		Version: defaultSnapshotVersion,
		Books:   make([]lending.Book, 0, len(st.books)),
		Members: make([]lending.Member, 0, len(st.members)),
		Records: make([]lending.BorrowRecord, 0, len(st.records)),
	}

	for _, book := range st.books {
		snapshot.Books = append(snapshot.Books, book)
	}

	for _, member := range st.members {
		snapshot.Members = append(snapshot.Members, member)
	}

	for _, record := range st.records {
		snapshot.Records = append(snapshot.Records, cloneRecord(record))
	}

	sort.Slice(snapshot.Books, func(i, j int) bool { return snapshot.Books[i].ISBN < snapshot.Books[j].ISBN })
	sort.Slice(snapshot.Members, func(i, j int) bool { return snapshot.Members[i].ID < snapshot.Members[j].ID })
	sort.Slice(snapshot.Records, func(i, j int) bool { return snapshot.Records[i].RecordID < snapshot.Records[j].RecordID })

	return snapshot
}

func stateFromSnapshot(snapshot Snapshot) (state, error) {
	if snapshot.Version != defaultSnapshotVersion {
		return state{}, fmt.Errorf("%w: %d", ErrUnsupportedSnapshotVersion, snapshot.Version)
	}

	st := newState()

	for _, book := range snapshot.Books {
		if _, exists := st.books[book.ISBN]; exists {
			return state{}, fmt.Errorf("%w: isbn %s", lending.ErrDuplicateKey, book.ISBN)
		}
		st.books[book.ISBN] = book
	}

	for _, member := range snapshot.Members {
		if _, exists := st.members[member.ID]; exists {
			return state{}, fmt.Errorf("%w: member id %s", lending.ErrDuplicateKey, member.ID)
		}
		st.members[member.ID] = member
	}

	for _, record := range snapshot.Records {
		if _, exists := st.records[record.RecordID]; exists {
			return state{}, fmt.Errorf("%w: record id %s", lending.ErrDuplicateKey, record.RecordID)
		}
		st.records[record.RecordID] = cloneRecord(record)
	}

	return st, nil
}

// LoadSnapshotFile reads a snapshot file. found is false when the file does not exist.
func LoadSnapshotFile(path string) (snapshot Snapshot, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}

	if err != nil {
		return Snapshot{}, false, errors.Join(lending.ErrPersistenceFailure, err)
	}

	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, errors.Join(lending.ErrPersistenceFailure, err)
	}

	return snapshot, true, nil
}

// SaveSnapshotFile writes the snapshot to a temporary file next to path and renames it into place,
// so a crash never leaves a truncated snapshot behind.
func SaveSnapshotFile(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
