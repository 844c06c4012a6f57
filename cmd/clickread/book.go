package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/ingest"
	"github.com/jackzampolin/clickread/internal/library"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Create and inspect book records",
	Long: `Create and inspect book records without a running server.

A book is named by its id (a record in <home>/books) or by a path to a
JSON file.

Examples:
  clickread book init moon --pdf scans/moon-1.pdf --pdf scans/moon-2.pdf
  clickread book init blank --pages 12
  clickread book list
  clickread book show moon
  clickread book check ./legacy/cat.json
  clickread book assign-ids ./legacy/cat.json`,
}

type bookSummary struct {
	ID       string         `json:"id" yaml:"id"`
	Path     string         `json:"path" yaml:"path"`
	Layout   book.Layout    `json:"layout" yaml:"layout"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Pages    int            `json:"pages" yaml:"pages"`
	Regions  int            `json:"regions" yaml:"regions"`
}

func summarize(b *book.Book) bookSummary {
	return bookSummary{
		ID:       b.ID,
		Path:     b.Path,
		Layout:   b.Layout,
		Metadata: b.Metadata,
		Pages:    b.Store.PageCount(),
		Regions:  b.Store.Len(),
	}
}

// resolveBookPath maps a book argument to its record path.
func resolveBookPath(h *home.Dir, arg string) (string, error) {
	if strings.EqualFold(filepath.Ext(arg), ".json") || strings.ContainsRune(arg, os.PathSeparator) {
		return filepath.Abs(arg)
	}
	if err := home.ValidateBookID(arg); err != nil {
		return "", err
	}
	return h.BookPath(arg), nil
}

// openBook loads the book named by arg.
func openBook(arg string) (*home.Dir, *book.Book, error) {
	h, err := getHome()
	if err != nil {
		return nil, nil, err
	}
	path, err := resolveBookPath(h, arg)
	if err != nil {
		return nil, nil, err
	}
	b, err := book.Load(path, newLogger(os.Stderr))
	if err != nil {
		return nil, nil, err
	}
	return h, b, nil
}

var (
	initPDFs          []string
	initLayout        string
	initPages         int
	initKeepOriginals bool
)

var bookInitCmd = &cobra.Command{
	Use:   "init <book_id>",
	Short: "Create a book record",
	Long: `Create a book record in the home directory.

With --pdf the scans are rendered to page images (pdftoppm must be on the
PATH) and a paged record with one empty page per image is written.
Multi-part scans named like moon-1.pdf, moon-2.pdf are ordered by their
number. Without --pdf an empty record with --pages pages is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		h, err := getHome()
		if err != nil {
			return err
		}
		lib := library.New(h, logger)

		if len(initPDFs) > 0 {
			res, err := ingest.New(lib).Ingest(cmd.Context(), ingest.Request{
				PDFPaths:      initPDFs,
				BookID:        args[0],
				KeepOriginals: initKeepOriginals,
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			return api.Output(res)
		}

		pages := make([]book.PageInfo, initPages)
		for i := range pages {
			pages[i] = book.PageInfo{Number: i + 1, Image: home.ImageName(i + 1)}
		}

		// Flat records cannot keep empty pages, so books created with pages
		// are paged unless --layout says otherwise.
		layout := book.LayoutPaged
		if initLayout != "" {
			if layout, err = book.ParseLayout(initLayout); err != nil {
				return err
			}
		} else if len(pages) == 0 {
			mgr, err := loadConfig(h, logger)
			if err != nil {
				return err
			}
			layout = mgr.Get().Layout()
		}
		b, err := lib.Create(args[0], layout, pages)
		if err != nil {
			return err
		}
		return api.Output(summarize(b))
	},
}

var bookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the books in the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		books, err := library.New(h, newLogger(os.Stderr)).List()
		if err != nil {
			return err
		}
		return api.Output(books)
	},
}

var bookShowCmd = &cobra.Command{
	Use:   "show <book>",
	Short: "Show a book's layout, metadata and counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, err := openBook(args[0])
		if err != nil {
			return err
		}
		return api.Output(summarize(b))
	},
}

type pageLine struct {
	Index   int    `json:"index" yaml:"index"`
	Key     string `json:"key" yaml:"key"`
	Regions int    `json:"regions" yaml:"regions"`
}

var bookPagesCmd = &cobra.Command{
	Use:   "pages <book>",
	Short: "List a book's pages with their region counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, err := openBook(args[0])
		if err != nil {
			return err
		}
		var out []pageLine
		for i, key := range b.Store.Pages() {
			regions, err := b.Store.PageByKey(key)
			if err != nil {
				return err
			}
			out = append(out, pageLine{Index: i, Key: key, Regions: len(regions)})
		}
		return api.Output(out)
	},
}

type checkResult struct {
	Path       string `json:"path" yaml:"path"`
	Regions    int    `json:"regions" yaml:"regions"`
	MissingIDs int    `json:"missing_ids" yaml:"missing_ids"`
	Consistent bool   `json:"consistent" yaml:"consistent"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

var bookCheckCmd = &cobra.Command{
	Use:   "check <book>",
	Short: "Check a book record loads and its indexes agree",
	Long: `Check a book record.

Reports regions without ids (they are shown but cannot be edited until
'clickread book assign-ids' runs) and verifies that the page index and
the flat region list agree. Exits non-zero when the record is
inconsistent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, err := openBook(args[0])
		if err != nil {
			return err
		}
		res := checkResult{Path: b.Path, Regions: b.Store.Len(), Consistent: true}
		for _, r := range b.Store.Elements() {
			if r.ID == "" {
				res.MissingIDs++
			}
		}
		checkErr := b.Store.Check()
		if checkErr != nil {
			res.Consistent = false
			res.Error = checkErr.Error()
		}
		if err := api.Output(res); err != nil {
			return err
		}
		return checkErr
	},
}

var bookAssignIDsCmd = &cobra.Command{
	Use:   "assign-ids <book>",
	Short: "Give every region without an id a new one and save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, err := openBook(args[0])
		if err != nil {
			return err
		}
		n := b.Store.AssignMissingIDs()
		if n == 0 {
			fmt.Println("All regions already have ids")
			return nil
		}
		if err := b.Save(); err != nil {
			return err
		}
		fmt.Printf("Assigned %d ids in %s\n", n, b.Path)
		return nil
	},
}

func init() {
	bookInitCmd.Flags().StringArrayVar(&initPDFs, "pdf", nil, "Scanned PDF to render (repeatable)")
	bookInitCmd.Flags().StringVar(&initLayout, "layout", "", "Record layout: paged or flat (default from config, paged when --pages is set)")
	bookInitCmd.Flags().IntVar(&initPages, "pages", 0, "Number of empty pages when no PDF is given")
	bookInitCmd.Flags().BoolVar(&initKeepOriginals, "keep-originals", false, "Copy the PDFs next to the page images")

	bookCmd.AddCommand(bookInitCmd)
	bookCmd.AddCommand(bookListCmd)
	bookCmd.AddCommand(bookShowCmd)
	bookCmd.AddCommand(bookPagesCmd)
	bookCmd.AddCommand(bookCheckCmd)
	bookCmd.AddCommand(bookAssignIDsCmd)

	rootCmd.AddCommand(bookCmd)
}
