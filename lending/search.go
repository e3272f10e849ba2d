package lending

import "strings"

// BookMatches reports whether term occurs, case-insensitively, in the book's
// isbn, title, author, category or publisher. An empty term matches every book.
func BookMatches(book Book, term string) bool {
	return containsFold(term, book.ISBN, book.Title, book.Author, book.Category, book.Publisher)
}

// MemberMatches reports whether term occurs, case-insensitively, in the member's
// id, first name, last name, email or membership type. An empty term matches every member.
func MemberMatches(member Member, term string) bool {
	return containsFold(term, member.ID, member.FirstName, member.LastName, member.Email, string(member.MembershipType))
}

func containsFold(term string, fields ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return true
	}

	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}

	return false
}
