package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/librarydesk/lending-engine/lending"
)

func memberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage library members",
	}

	cmd.AddCommand(
		memberRegisterCmd(a),
		memberGetCmd(a),
		memberSearchCmd(a),
		memberListCmd(a),
		memberUpdateCmd(a),
		memberRenewCmd(a),
		memberDeactivateCmd(a),
		memberStatsCmd(a),
		memberCanBorrowCmd(a),
	)

	return cmd
}

type contactFlags struct {
	firstName      string
	lastName       string
	email          string
	phone          string
	membershipType string
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.firstName, "first", "", "first name")
	cmd.Flags().StringVar(&f.lastName, "last", "", "last name")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&f.membershipType, "type", "", "membership type: STANDARD|PREMIUM|STUDENT|FACULTY")
}

// apply overwrites the contact fields whose flags were given and returns the requested
// membership type, "" when --type was not given.
func (f *contactFlags) apply(cmd *cobra.Command, contact lending.Contact) (lending.Contact, lending.MembershipType, error) {
	flags := cmd.Flags()

	if flags.Changed("first") {
		contact.FirstName = f.firstName
	}

	if flags.Changed("last") {
		contact.LastName = f.lastName
	}

	if flags.Changed("email") {
		contact.Email = f.email
	}

	if flags.Changed("phone") {
		contact.Phone = f.phone
	}

	if !flags.Changed("type") {
		return contact, "", nil
	}

	membershipType, known := lending.ParseMembershipType(f.membershipType)
	if !known {
		return lending.Contact{}, "", fmt.Errorf("%w: unknown membership type %q", lending.ErrInvalidInput, f.membershipType)
	}

	return contact, membershipType, nil
}

func memberRegisterCmd(a *app) *cobra.Command {
	var (
		id      string
		expiry  string
		contact contactFlags
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, membershipType, err := contact.apply(cmd, lending.Contact{})
			if err != nil {
				return err
			}

			expires, err := parseOptionalDate(expiry)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			member, err := s.engine.RegisterMember(cmd.Context(), lending.Member{
				ID:               id,
				Contact:          c,
				MembershipType:   membershipType,
				MembershipExpiry: expires,
			})
			if err != nil {
				return err
			}

			return a.printer().member(member)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "member id (required)")
	cmd.Flags().StringVar(&expiry, "expires", "", "membership expiry (YYYY-MM-DD), defaults to one term from today")
	contact.register(cmd)
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func memberGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			member, err := s.engine.FindMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printer().member(member)
		},
	}
}

func memberSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search active members by name or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			members, err := s.engine.SearchMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printer().members(members)
		},
	}
}

func memberListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			members, err := s.engine.ListMembers(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer().members(members)
		},
	}
}

func memberUpdateCmd(a *app) *cobra.Command {
	var contact contactFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the contact details or membership type, omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			current, err := s.engine.FindMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			c, membershipType, err := contact.apply(cmd, current.Contact)
			if err != nil {
				return err
			}

			member, err := s.engine.UpdateMemberDetails(cmd.Context(), args[0], c, membershipType)
			if err != nil {
				return err
			}

			return a.printer().member(member)
		},
	}

	contact.register(cmd)

	return cmd
}

func memberRenewCmd(a *app) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "renew <id>",
		Short: "Extend a membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			member, err := s.engine.RenewMembership(cmd.Context(), args[0], months)
			if err != nil {
				return err
			}

			return a.printer().member(member)
		},
	}

	cmd.Flags().IntVar(&months, "months", 0, "months to extend by, defaults to the policy's membership term")

	return cmd
}

func memberDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Remove a member from the active roster, open loans can still be returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := s.engine.DeactivateMember(cmd.Context(), args[0]); err != nil {
				return err
			}

			return a.printer().message("member %s deactivated", args[0])
		},
	}
}

func memberStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count the active members per membership type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := s.engine.MembershipTypeStats(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer().print(stats, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, "TYPE\tMEMBERS")
				for _, membershipType := range lending.MembershipTypes() {
					_, _ = fmt.Fprintf(w, "%s\t%d\n", membershipType, stats[membershipType])
				}
			})
		},
	}
}

type eligibility struct {
	MemberID  string `json:"memberId"`
	CanBorrow bool   `json:"canBorrow"`
	Reason    string `json:"reason,omitempty"`
}

func memberCanBorrowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can-borrow <id>",
		Short: "Check whether a member may borrow today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			allowed, reason, err := s.engine.CanMemberBorrow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			result := eligibility{MemberID: args[0], CanBorrow: allowed, Reason: reason}

			return a.printer().print(result, func(w io.Writer) {
				if result.CanBorrow {
					_, _ = fmt.Fprintf(w, "member %s may borrow\n", result.MemberID)
					return
				}
				_, _ = fmt.Fprintf(w, "member %s may not borrow: %s\n", result.MemberID, result.Reason)
			})
		},
	}
}
