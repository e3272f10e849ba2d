package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/librarydesk/lending-engine/lending"
)

func bookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the catalog",
	}

	cmd.AddCommand(
		bookAddCmd(a),
		bookGetCmd(a),
		bookSearchCmd(a),
		bookListCmd(a),
		bookAvailableCmd(a),
		bookUpdateCmd(a),
		bookCopiesCmd(a),
		bookRetireCmd(a),
		bookCategoriesCmd(a),
	)

	return cmd
}

// bookDetailFlags binds the editable book fields to flags.
type bookDetailFlags struct {
	title     string
	author    string
	category  string
	publisher string
	published string
}

func (f *bookDetailFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title")
	cmd.Flags().StringVar(&f.author, "author", "", "author")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&f.published, "published", "", "publication date (YYYY-MM-DD)")
}

// apply overwrites the fields of details whose flags were given on the command line.
func (f *bookDetailFlags) apply(cmd *cobra.Command, details lending.BookDetails) (lending.BookDetails, error) {
	flags := cmd.Flags()

	if flags.Changed("title") {
		details.Title = f.title
	}

	if flags.Changed("author") {
		details.Author = f.author
	}

	if flags.Changed("category") {
		details.Category = f.category
	}

	if flags.Changed("publisher") {
		details.Publisher = f.publisher
	}

	if flags.Changed("published") {
		published, err := parseOptionalDate(f.published)
		if err != nil {
			return lending.BookDetails{}, err
		}
		details.PublicationDate = published
	}

	return details, nil
}

func bookAddCmd(a *app) *cobra.Command {
	var (
		isbn    string
		copies  int
		details bookDetailFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a title to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			d, err := details.apply(cmd, lending.BookDetails{})
			if err != nil {
				return err
			}

			book, err := s.engine.AddBook(cmd.Context(), lending.Book{ISBN: isbn, TotalCopies: copies}.WithDetails(d))
			if err != nil {
				return err
			}

			return a.printer().book(book)
		},
	}

	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN (required)")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies")
	details.register(cmd)
	_ = cmd.MarkFlagRequired("isbn")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")

	return cmd
}

func bookGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <isbn>",
		Short: "Show a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			book, err := s.engine.FindBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printer().book(book)
		},
	}
}

func bookSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search active books by title, author or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			books, err := s.engine.SearchBooks(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.printer().books(books)
		},
	}
}

func bookListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			books, err := s.engine.ListBooks(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer().books(books)
		},
	}
}

func bookAvailableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List the books with a copy on the shelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			books, err := s.engine.ListAvailableBooks(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer().books(books)
		},
	}
}

func bookUpdateCmd(a *app) *cobra.Command {
	var details bookDetailFlags

	cmd := &cobra.Command{
		Use:   "update <isbn>",
		Short: "Change the details of a book, omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			current, err := s.engine.FindBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			d, err := details.apply(cmd, current.Details())
			if err != nil {
				return err
			}

			book, err := s.engine.UpdateBookDetails(cmd.Context(), args[0], d)
			if err != nil {
				return err
			}

			return a.printer().book(book)
		},
	}

	details.register(cmd)

	return cmd
}

func bookCopiesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copies <isbn> <delta>",
		Short: "Add (positive delta) or remove (negative delta) copies of a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: delta %q is not a number", lending.ErrInvalidInput, args[1])
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			book, err := s.engine.AdjustCopies(cmd.Context(), args[0], delta)
			if err != nil {
				return err
			}

			return a.printer().book(book)
		},
	}

	// a negative delta after the isbn must not be read as a flag
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func bookRetireCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retire <isbn>",
		Short: "Remove a book from the catalog, its loan history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := s.engine.RetireBook(cmd.Context(), args[0]); err != nil {
				return err
			}

			return a.printer().message("book %s retired", args[0])
		},
	}
}

func bookCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories of the active books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			categories, err := s.engine.UniqueCategories(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer().print(categories, func(w io.Writer) {
				for _, category := range categories {
					_, _ = fmt.Fprintln(w, category)
				}
			})
		},
	}
}
