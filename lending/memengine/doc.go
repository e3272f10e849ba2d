// Package memengine provides an in-memory lending.Backend.
//
// Units of work stage their writes in a private overlay and apply them under a single
// write lock on commit, so readers never observe half of a Borrow or Return. Key
// uniqueness (isbn, member id, member email, record id) is re-checked at commit time.
//
// Optionally every committed unit of work is persisted as a JSON snapshot file, which
// makes the in-memory backend usable for a single-user command line library:
//
//	store, err := memengine.Open("library.json", memengine.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	eng, err := engine.New(store)
package memengine
