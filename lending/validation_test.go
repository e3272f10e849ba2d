package lending_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/librarydesk/lending-engine/lending"
)

func Test_Validate_Book(t *testing.T) {
	// arrange
	valid := lending.Book{ISBN: "111", Title: "Dune", Author: "Frank Herbert", TotalCopies: 2, AvailableCopies: 2}
	broken := lending.Book{ISBN: "", Title: "Dune", TotalCopies: 1, AvailableCopies: 2}

	// act
	validErr := lending.Validate(valid)
	brokenErr := lending.Validate(broken)

	// assert
	assert.NoError(t, validErr)
	assert.ErrorIs(t, brokenErr, lending.ErrInvalidInput)
	assert.Contains(t, brokenErr.Error(), "ISBN is required")
	assert.Contains(t, brokenErr.Error(), "Author is required")
	assert.Contains(t, brokenErr.Error(), "AvailableCopies must not exceed TotalCopies")
}

func Test_Validate_Member(t *testing.T) {
	// arrange
	member := lending.Member{
		ID:             "M001",
		Contact:        lending.Contact{FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email"},
		MembershipType: "GOLD",
	}

	// act
	err := lending.Validate(member)

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidInput)
	assert.Equal(t, lending.KindInvalidInput, lending.KindOf(err))
	assert.Contains(t, err.Error(), "Email must be a valid email address")
	assert.Contains(t, err.Error(), "MembershipType must be one of [STANDARD PREMIUM STUDENT FACULTY]")
}

func Test_ParseMembershipType(t *testing.T) {
	parsed, ok := lending.ParseMembershipType(" student ")
	assert.True(t, ok)
	assert.Equal(t, lending.MembershipStudent, parsed)

	_, ok = lending.ParseMembershipType("gold")
	assert.False(t, ok)
}
