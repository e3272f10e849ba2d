// Package cli implements the librarian command: a cobra command tree over the lending engine.
//
// Every invocation loads the configuration, opens the configured backend, runs one
// command and closes the backend again. Output goes to stdout as aligned text or,
// with --json, as JSON. Logs go to stderr as JSON lines.
package cli
