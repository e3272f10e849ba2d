package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/librarydesk/lending-engine/lending"
)

func borrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <member-id> <isbn>",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			record, err := s.engine.Borrow(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return a.printer().record(record)
		},
	}
}

func returnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return <record-id>",
		Short: "Take a lent copy back, charging the fine for the days overdue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			record, err := s.engine.Return(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printer().record(record)
		},
	}
}

func loansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Inspect the loan ledger",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "history <member-id>",
			Short: "Every loan of a member, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				records, err := s.engine.MemberBorrowHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return a.printer().records(records)
			},
		},
		&cobra.Command{
			Use:   "active <member-id>",
			Short: "The open loans of a member, earliest due first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				records, err := s.engine.MemberActiveLoans(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return a.printer().records(records)
			},
		},
		&cobra.Command{
			Use:   "overdue",
			Short: "Loans past their due date with the fine owed today",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				records, err := s.engine.OverdueRecords(cmd.Context())
				if err != nil {
					return err
				}

				return a.printer().records(records)
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "Every loan, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				records, err := s.engine.AllBorrowRecords(cmd.Context())
				if err != nil {
					return err
				}

				return a.printer().records(records)
			},
		},
		&cobra.Command{
			Use:   "fines <member-id>",
			Short: "Fines accrued so far by the open loans of a member",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				fines, err := s.engine.MemberOutstandingFines(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				result := outstandingFines{MemberID: args[0], Outstanding: fines}

				return a.printer().print(result, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "member %s owes %s\n", result.MemberID, result.Outstanding)
				})
			},
		},
	)

	return cmd
}

type outstandingFines struct {
	MemberID    string        `json:"memberId"`
	Outstanding lending.Money `json:"outstanding"`
}
