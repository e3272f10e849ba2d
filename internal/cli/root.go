package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/librarydesk/lending-engine/lending"
)

// Version is reported by --version and as the OpenTelemetry service version. Set at build time.
var Version = "dev"

const (
	exitOK    = 0
	exitError = 1
)

// Execute runs the librarian command with args and returns the process exit code.
// Failures are printed to stderr together with their error kind.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return exitError
	}

	return exitOK
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "librarian",
		Short:         "Lend books to library members and report on the loans",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&a.flags.debug, "debug", false, "log at debug level, including SQL statements")
	cmd.PersistentFlags().BoolVar(&a.flags.json, "json", false, "print results as JSON")
	cmd.PersistentFlags().StringVar(&a.flags.backend, "backend", "", "backend to use: memory|sqlite|postgres (overrides LIBRARY_BACKEND)")
	cmd.PersistentFlags().StringVar(&a.flags.envFile, "env-file", ".env", "file with LIBRARY_* settings, ignored when missing")

	cmd.AddCommand(
		migrateCmd(a),
		bookCmd(a),
		memberCmd(a),
		borrowCmd(a),
		returnCmd(a),
		loansCmd(a),
		reportCmd(a),
	)

	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := s.backend.Migrate(cmd.Context()); err != nil {
				return err
			}

			return a.printer().message("schema of the %s backend is up to date", s.backend.Name())
		},
	}
}

func printError(w io.Writer, err error) {
	kind := lending.KindOf(err)
	if kind == lending.KindUnknown {
		_, _ = fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	_, _ = fmt.Fprintf(w, "error [%s]: %v\n", kind, err)

	var commitErr *lending.CommitError
	if errors.As(err, &commitErr) && !commitErr.RolledBack {
		_, _ = fmt.Fprintf(w, "check record %s, member %s and book %s by hand\n",
			commitErr.RecordID, commitErr.MemberID, commitErr.ISBN)
	}
}
