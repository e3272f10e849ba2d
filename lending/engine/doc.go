// Package engine implements the lending transaction engine.
//
// Borrow and Return validate against the catalog, the membership store and the loan ledger
// before they commit, and then write all three records as one backend transaction.
// Operations on the same member or the same isbn are serialized by in-process keyed locks,
// acquired in sorted order; operations on disjoint keys run concurrently.
//
// The engine also offers read-through accessors over the ledger and the administrative
// operations of the catalog and the membership store, so every writer of a book or member
// record takes the same locks.
package engine
