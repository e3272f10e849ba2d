// Package report builds the library's management reports.
//
// Load reads books, members and borrow records once through a Source (usually the
// *engine.Engine) with eventual consistency. The report builders are pure functions
// over the loaded Data, so a set of reports generated from one Data is consistent.
package report
