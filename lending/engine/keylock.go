package engine

import (
	"context"
	"sort"
	"sync"
)

// keyLocks is a set of mutexes keyed by string. Entries exist only while held or awaited.
type keyLocks struct {
	mu      sync.Mutex
	entries map[string]*keyLockEntry
}

type keyLockEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{entries: map[string]*keyLockEntry{}}
}

// lock acquires all keys in sorted order and returns the function that releases them.
// On cancellation the keys acquired so far are released and ctx.Err() is returned.
func (k *keyLocks) lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := sortedUnique(keys)
	acquired := make([]string, 0, len(sorted))

	for _, key := range sorted {
		if err := k.acquire(ctx, key); err != nil {
			k.releaseAll(acquired)
			return nil, err
		}

		acquired = append(acquired, key)
	}

	var once sync.Once

	return func() { once.Do(func() { k.releaseAll(acquired) }) }, nil
}

func (k *keyLocks) acquire(ctx context.Context, key string) error {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyLockEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		k.unref(key, entry)
		k.mu.Unlock()

		return ctx.Err()
	}
}

func (k *keyLocks) releaseAll(keys []string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := len(keys) - 1; i >= 0; i-- {
		entry := k.entries[keys[i]]
		<-entry.sem
		k.unref(keys[i], entry)
	}
}

// unref drops one reference. Callers hold k.mu.
func (k *keyLocks) unref(key string, entry *keyLockEntry) {
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
}

// size reports the number of keys currently held or awaited.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.entries)
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))

	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, key)
	}

	sort.Strings(out)

	return out
}
