package lending

import (
	"strings"
	"time"
)

// MembershipType determines how many loans a member may hold at once.
type MembershipType string

const (
	MembershipStandard MembershipType = "STANDARD"
	MembershipPremium  MembershipType = "PREMIUM"
	MembershipStudent  MembershipType = "STUDENT"
	MembershipFaculty  MembershipType = "FACULTY"
)

// MembershipTypes lists every known membership type in display order.
func MembershipTypes() []MembershipType {
	return []MembershipType{MembershipStandard, MembershipPremium, MembershipStudent, MembershipFaculty}
}

// ParseMembershipType normalizes s (case-insensitive) into a MembershipType.
// The second return value is false for unknown types.
func ParseMembershipType(s string) (MembershipType, bool) {
	t := MembershipType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range MembershipTypes() {
		if t == known {
			return t, true
		}
	}

	return t, false
}

// Contact holds the personal details shared by everyone the library keeps on file.
type Contact struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"max=20"`
}

// FullName returns "First Last".
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Member is a library patron. BorrowedCount mirrors the number of the member's active loans.
type Member struct {
	ID string `json:"id" validate:"required,max=20"`
	Contact
	MembershipType   MembershipType `json:"membershipType" validate:"required,oneof=STANDARD PREMIUM STUDENT FACULTY"`
	MembershipExpiry time.Time      `json:"membershipExpiry"`
	BorrowedCount    int            `json:"borrowedCount" validate:"gte=0"`
	Active           bool           `json:"active"`
	RegistrationDate time.Time      `json:"registrationDate"`
}

// IsExpired reports whether the membership is no longer valid on the given day.
// A membership expiring today is already expired.
func (m Member) IsExpired(today time.Time) bool {
	return !Today(m.MembershipExpiry).After(Today(today))
}
