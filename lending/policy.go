package lending

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultLoanPeriodDays       = 14
	defaultDailyFineCents       = 50
	defaultBorrowLimit          = 3
	defaultMembershipTermMonths = 12
)

// ErrInvalidPolicy is returned when a Policy contains values the engine cannot work with.
var ErrInvalidPolicy = errors.New("invalid lending policy")

// Policy holds the lending rules. Fines are linear in the days overdue and not capped.
type Policy struct {
	LoanPeriodDays       int
	DailyFine            Money
	BorrowLimits         map[MembershipType]int
	DefaultBorrowLimit   int
	MembershipTermMonths int
}

// DefaultPolicy returns a 14-day loan period, $0.50 per day overdue and the
// STANDARD=3, STUDENT=5, PREMIUM=10 borrow limits (3 for any other type).
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: defaultLoanPeriodDays,
		DailyFine:      defaultDailyFineCents,
		BorrowLimits: map[MembershipType]int{
			MembershipStandard: 3,
			MembershipStudent:  5,
			MembershipPremium:  10,
		},
		DefaultBorrowLimit:   defaultBorrowLimit,
		MembershipTermMonths: defaultMembershipTermMonths,
	}
}

// Validate checks the policy for values that would break the lending invariants.
func (p Policy) Validate() error {
	if p.LoanPeriodDays <= 0 {
		return fmt.Errorf("%w: loan period must be positive, got %d", ErrInvalidPolicy, p.LoanPeriodDays)
	}

	if p.DailyFine < 0 {
		return fmt.Errorf("%w: daily fine must not be negative, got %s", ErrInvalidPolicy, p.DailyFine)
	}

	if p.DefaultBorrowLimit < 0 {
		return fmt.Errorf("%w: default borrow limit must not be negative, got %d", ErrInvalidPolicy, p.DefaultBorrowLimit)
	}

	for membershipType, limit := range p.BorrowLimits {
		if limit < 0 {
			return fmt.Errorf("%w: borrow limit for %s must not be negative, got %d", ErrInvalidPolicy, membershipType, limit)
		}
	}

	if p.MembershipTermMonths <= 0 {
		return fmt.Errorf("%w: membership term must be positive, got %d", ErrInvalidPolicy, p.MembershipTermMonths)
	}

	return nil
}

// BorrowLimit returns the maximum number of simultaneous active loans for the membership type.
func (p Policy) BorrowLimit(membershipType MembershipType) int {
	if limit, ok := p.BorrowLimits[membershipType]; ok {
		return limit
	}

	return p.DefaultBorrowLimit
}

// DueDate returns the due date of a loan starting on borrowDate.
func (p Policy) DueDate(borrowDate time.Time) time.Time {
	return AddDays(borrowDate, p.LoanPeriodDays)
}

// MembershipExpiry returns the expiry of a membership that starts or is renewed on the given day.
func (p Policy) MembershipExpiry(from time.Time) time.Time {
	return Today(from).AddDate(0, p.MembershipTermMonths, 0)
}

// CanBorrow reports whether the member may take out another loan on the given day.
func (p Policy) CanBorrow(member Member, today time.Time) bool {
	return member.Active &&
		!member.IsExpired(today) &&
		member.BorrowedCount < p.BorrowLimit(member.MembershipType)
}

// IneligibilityReason explains why CanBorrow is false. It returns "" for eligible members.
func (p Policy) IneligibilityReason(member Member, today time.Time) string {
	switch {
	case !member.Active:
		return "membership is inactive"
	case member.IsExpired(today):
		return "membership expired on " + FormatDate(member.MembershipExpiry)
	case member.BorrowedCount >= p.BorrowLimit(member.MembershipType):
		return fmt.Sprintf("borrow limit of %d reached", p.BorrowLimit(member.MembershipType))
	default:
		return ""
	}
}

// IsOverdue reports whether the record is still out and its due date has passed.
func IsOverdue(record BorrowRecord, today time.Time) bool {
	return record.ReturnDate == nil && EpochDay(today) > EpochDay(record.DueDate)
}

// DaysOverdue returns the number of whole days the record is past due, or 0.
func DaysOverdue(record BorrowRecord, today time.Time) int64 {
	if !IsOverdue(record, today) {
		return 0
	}

	return EpochDay(today) - EpochDay(record.DueDate)
}

// Fine evaluates the fine of the record as of the given day without mutating it.
// Returned records carry their frozen fine.
func (p Policy) Fine(record BorrowRecord, today time.Time) Money {
	if record.Status == StatusReturned {
		return record.FineAmount
	}

	return Money(DaysOverdue(record, today)) * p.DailyFine
}

// TotalFines sums the fines of all records as of the given day.
func (p Policy) TotalFines(records []BorrowRecord, today time.Time) Money {
	var total Money
	for _, record := range records {
		total += p.Fine(record, today)
	}

	return total
}
