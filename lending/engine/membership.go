package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/librarydesk/lending-engine/lending"
)

// RegisterMember adds a member. An empty membership type becomes STANDARD and a zero expiry
// becomes today plus the policy's membership term. The member starts active, registered
// today and without loans. Ids and emails are unique: ErrDuplicateKey.
func (e *Engine) RegisterMember(ctx context.Context, member lending.Member) (lending.Member, error) {
	today := e.Today()

	member.ID = strings.TrimSpace(member.ID)
	member.Contact = normalizeContact(member.Contact)
	if member.MembershipType == "" {
		member.MembershipType = lending.MembershipStandard
	}
	if member.MembershipExpiry.IsZero() {
		member.MembershipExpiry = e.policy.MembershipExpiry(today)
	} else {
		member.MembershipExpiry = lending.Today(member.MembershipExpiry)
	}
	member.BorrowedCount = 0
	member.Active = true
	member.RegistrationDate = today

	ctx, obs := e.begin(ctx, operationRegisterMember, spanAttrMemberID, member.ID)

	err := lending.Validate(member)
	if err == nil {
		err = e.mutate(ctx, operationRegisterMember, []string{memberKey(member.ID)}, func(ctx context.Context, tx lending.Stores) error {
			return tx.Members.CreateMember(ctx, member)
		})
	}

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Member{}, err
	}

	return member, nil
}

// UpdateMemberDetails replaces the contact details of a member and, unless membershipType is
// empty, its type. A type whose borrow limit is below the member's active loans is rejected
// with ErrInvalidInput.
func (e *Engine) UpdateMemberDetails(
	ctx context.Context,
	id string,
	contact lending.Contact,
	membershipType lending.MembershipType,
) (lending.Member, error) {
	ctx, obs := e.begin(ctx, operationUpdateMember, spanAttrMemberID, id)

	var updated lending.Member
	err := e.mutate(ctx, operationUpdateMember, []string{memberKey(id)}, func(ctx context.Context, tx lending.Stores) error {
		member, err := tx.Members.GetMemberForUpdate(ctx, id)
		if err != nil {
			return err
		}

		member.Contact = normalizeContact(contact)
		if membershipType != "" {
			member.MembershipType = membershipType
		}

		if err := lending.Validate(member); err != nil {
			return err
		}

		if limit := e.policy.BorrowLimit(member.MembershipType); member.BorrowedCount > limit {
			return fmt.Errorf("%w: member %s holds %d loans, the limit for %s is %d",
				lending.ErrInvalidInput, id, member.BorrowedCount, member.MembershipType, limit)
		}

		updated = member

		return tx.Members.UpdateMember(ctx, member)
	})

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Member{}, err
	}

	return updated, nil
}

// RenewMembership extends the membership by months, counted from its current expiry or
// from today when it already lapsed. months <= 0 uses the policy's membership term.
func (e *Engine) RenewMembership(ctx context.Context, id string, months int) (lending.Member, error) {
	today := e.Today()
	if months <= 0 {
		months = e.policy.MembershipTermMonths
	}

	ctx, obs := e.begin(ctx, operationRenewMembership, spanAttrMemberID, id)

	var renewed lending.Member
	err := e.mutate(ctx, operationRenewMembership, []string{memberKey(id)}, func(ctx context.Context, tx lending.Stores) error {
		member, err := tx.Members.GetMemberForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from := member.MembershipExpiry
		if member.IsExpired(today) {
			from = today
		}

		member.MembershipExpiry = lending.Today(from).AddDate(0, months, 0)
		renewed = member

		return tx.Members.UpdateMember(ctx, member)
	})

	e.end(ctx, obs, err)
	if err != nil {
		return lending.Member{}, err
	}

	return renewed, nil
}

// DeactivateMember removes a member from the active roster. Records stay; open loans can still be returned.
func (e *Engine) DeactivateMember(ctx context.Context, id string) error {
	ctx, obs := e.begin(ctx, operationDeactivateMember, spanAttrMemberID, id)

	err := e.mutate(ctx, operationDeactivateMember, []string{memberKey(id)}, func(ctx context.Context, tx lending.Stores) error {
		return tx.Members.SoftDeleteMember(ctx, id)
	})

	e.end(ctx, obs, err)

	return err
}

// FindMember returns the member with the given id, active or not.
func (e *Engine) FindMember(ctx context.Context, id string) (lending.Member, error) {
	return e.backend.Stores().Members.GetMember(ctx, strings.TrimSpace(id))
}

// SearchMembers returns the active members matching term, ordered by last then first name.
func (e *Engine) SearchMembers(ctx context.Context, term string) ([]lending.Member, error) {
	return e.backend.Stores().Members.SearchMembers(ctx, term)
}

// ListMembers returns all active members, ordered by last then first name.
func (e *Engine) ListMembers(ctx context.Context) ([]lending.Member, error) {
	return e.backend.Stores().Members.ListMembers(ctx)
}

// CanMemberBorrow reports whether the member may borrow today and, if not, why.
func (e *Engine) CanMemberBorrow(ctx context.Context, id string) (bool, string, error) {
	member, err := e.FindMember(ctx, id)
	if err != nil {
		return false, "", err
	}

	today := e.Today()

	return e.policy.CanBorrow(member, today), e.policy.IneligibilityReason(member, today), nil
}

// MembershipTypeStats counts the active members per membership type. Every known type is present.
func (e *Engine) MembershipTypeStats(ctx context.Context) (map[lending.MembershipType]int, error) {
	members, err := e.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[lending.MembershipType]int, len(lending.MembershipTypes()))
	for _, membershipType := range lending.MembershipTypes() {
		stats[membershipType] = 0
	}

	for _, member := range members {
		stats[member.MembershipType]++
	}

	e.logDebug(ctx, logMsgStatsComputed, logAttrMembers, len(members))

	return stats, nil
}

func normalizeContact(c lending.Contact) lending.Contact {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	return c
}
