// Package lending provides the core types and contracts of the library lending engine.
//
// This package defines the entities (Book, Member, BorrowRecord), the lending Policy
// with its pure fine computation, the search predicates, the error kinds and the
// store contracts that backends implement.
//
// The lending engine itself lives in the engine subpackage. Backends live in
// memengine (in-memory, optional JSON snapshot file) and sqlengine (PostgreSQL and SQLite).
//
// Key types:
//   - Book, Member, BorrowRecord: the three records a lending transaction keeps consistent
//   - Policy: loan period, daily fine and borrow limits
//   - CatalogStore, MembershipStore, LoanLedger: store contracts
//   - Backend: plain reads plus an atomic unit of work over all three stores
//
// Common usage pattern:
//
//	policy := lending.DefaultPolicy()
//	fine := policy.Fine(record, lending.Today(time.Now()))
//
//	if !policy.CanBorrow(member, today) {
//		// member is inactive, expired or at the limit
//	}
package lending
