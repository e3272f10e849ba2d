package report

import (
	"sort"

	"github.com/librarydesk/lending-engine/lending"
)

const topBorrowersLimit = 5

// Borrower is a member ranked by the number of loans they ever took out.
type Borrower struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Loans    int    `json:"loans"`
}

// MemberActivity summarises how the active members use the library. Top borrowers also
// rank members that have since been deactivated.
type MemberActivity struct {
	TotalMembers       int                            `json:"totalMembers"`
	MembersWithHistory int                            `json:"membersWithHistory"`
	TypeDistribution   map[lending.MembershipType]int `json:"typeDistribution"`
	TopBorrowers       []Borrower                     `json:"topBorrowers"`
	CurrentlyBorrowed  int                            `json:"currentlyBorrowed"`
}

// Activity builds the member activity report. Every membership type is listed, unused ones with 0.
func Activity(data Data) MemberActivity {
	members := data.membersByID()

	activity := MemberActivity{
		TotalMembers:     len(data.Members),
		TypeDistribution: make(map[lending.MembershipType]int, len(lending.MembershipTypes())),
		TopBorrowers:     make([]Borrower, 0, topBorrowersLimit),
	}

	for _, membershipType := range lending.MembershipTypes() {
		activity.TypeDistribution[membershipType] = 0
	}

	for _, member := range data.Members {
		activity.TypeDistribution[member.MembershipType]++
	}

	loans := make(map[string]int)
	for _, record := range data.Records {
		loans[record.MemberID]++
		if record.IsActive() {
			activity.CurrentlyBorrowed++
		}
	}

	for memberID := range loans {
		if _, ok := members[memberID]; ok {
			activity.MembersWithHistory++
		}
	}

	ranked := make([]Borrower, 0, len(loans))
	for memberID, count := range loans {
		borrower := Borrower{MemberID: memberID, Name: unknown, Loans: count}
		if member, ok := members[memberID]; ok {
			borrower.Name = member.FullName()
		}

		ranked = append(ranked, borrower)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Loans != ranked[j].Loans {
			return ranked[i].Loans > ranked[j].Loans
		}
		return ranked[i].MemberID < ranked[j].MemberID
	})

	if len(ranked) > topBorrowersLimit {
		ranked = ranked[:topBorrowersLimit]
	}
	activity.TopBorrowers = append(activity.TopBorrowers, ranked...)

	return activity
}
