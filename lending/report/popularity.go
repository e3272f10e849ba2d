package report

import "sort"

// PopularityLine is a title with the number of times it was borrowed.
type PopularityLine struct {
	ISBN    string `json:"isbn"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Borrows int    `json:"borrows"`
}

// BookPopularity ranks the titles by borrow count, most borrowed first.
type BookPopularity struct {
	Lines []PopularityLine `json:"lines"`
}

// Popularity builds the book popularity report. Titles never borrowed are left out.
func Popularity(data Data) BookPopularity {
	books := data.booksByISBN()

	borrows := make(map[string]int)
	for _, record := range data.Records {
		borrows[record.ISBN]++
	}

	lines := make([]PopularityLine, 0, len(borrows))
	for isbn, count := range borrows {
		line := PopularityLine{ISBN: isbn, Title: unknown, Author: unknown, Borrows: count}
		if book, ok := books[isbn]; ok {
			line.Title = book.Title
			line.Author = book.Author
		}

		lines = append(lines, line)
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Borrows != lines[j].Borrows {
			return lines[i].Borrows > lines[j].Borrows
		}
		return lines[i].ISBN < lines[j].ISBN
	})

	return BookPopularity{Lines: lines}
}
