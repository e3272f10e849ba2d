// Command librarian runs the lending engine from the command line.
//
//	librarian member register --id M001 --first Ada --last Lovelace --email ada@example.org
//	librarian book add --isbn 9780441172719 --title Dune --author "Frank Herbert" --copies 2
//	librarian borrow M001 9780441172719
//	librarian report overdue --json
//
// Settings come from LIBRARY_* environment variables or a .env file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/librarydesk/lending-engine/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}
