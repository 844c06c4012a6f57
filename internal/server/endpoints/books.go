package endpoints

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/ingest"
	"github.com/jackzampolin/clickread/internal/library"
	"github.com/jackzampolin/clickread/internal/svcctx"
)

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []library.Summary `json:"books"`
}

// BookResponse describes one book.
type BookResponse struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	Layout    book.Layout    `json:"layout"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PageCount int            `json:"page_count"`
	Regions   int            `json:"regions"`
}

func bookResponse(b *book.Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Path:      b.Path,
		Layout:    b.Layout,
		Metadata:  b.Metadata,
		PageCount: b.Store.PageCount(),
		Regions:   b.Store.Len(),
	}
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

var _ api.Endpoint = (*ListBooksEndpoint)(nil)

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	List every book record in the home directory. Records that fail to load are listed with their error.
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	ListBooksResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	books, err := lib.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListBooksResponse{Books: books})
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List all books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), "/api/books", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

var _ api.Endpoint = (*GetBookEndpoint)(nil)

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get book by ID
//	@Description	Get the layout, metadata and counts of a book
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	BookResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var resp BookResponse
	err := lib.View(r.PathValue("book_id"), func(b *book.Book) error {
		resp = bookResponse(b)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <book_id>",
		Short: "Get book details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateBookRequest is the request body for creating an empty book record.
type CreateBookRequest struct {
	ID     string   `json:"id"`
	Layout string   `json:"layout,omitempty"`
	Images []string `json:"images,omitempty"`
}

// CreateBookEndpoint handles POST /api/books.
type CreateBookEndpoint struct{}

var _ api.Endpoint = (*CreateBookEndpoint)(nil)

func (e *CreateBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *CreateBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create book
//	@Description	Create an empty book record with one page per image name
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateBookRequest	true	"Book"
//	@Success		201		{object}	BookResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books [post]
func (e *CreateBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var req CreateBookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Flat records cannot keep empty pages, so a book created with images
	// ignores a flat default layout.
	layout := book.LayoutPaged
	if cfg := svcctx.ConfigFrom(r.Context()); cfg != nil && len(req.Images) == 0 {
		layout = cfg.Get().Layout()
	}
	if req.Layout != "" {
		l, err := book.ParseLayout(req.Layout)
		if err != nil {
			writeErr(w, err)
			return
		}
		layout = l
	}

	pages := make([]book.PageInfo, len(req.Images))
	for i, img := range req.Images {
		if filepath.Base(img) != img {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid image name %q", img))
			return
		}
		pages[i] = book.PageInfo{Number: i + 1, Image: img}
	}

	b, err := lib.Create(req.ID, layout, pages)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookResponse(b))
}

func (e *CreateBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var layout string
	var pages int
	cmd := &cobra.Command{
		Use:   "create-book <book_id> [image...]",
		Short: "Create an empty book record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CreateBookRequest{ID: args[0], Layout: layout, Images: args[1:]}
			for i := 1; len(req.Images) == 0 && i <= pages; i++ {
				req.Images = append(req.Images, home.ImageName(i))
			}
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Post(cmd.Context(), "/api/books", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&layout, "layout", "", "Record layout: paged or flat (default from config)")
	cmd.Flags().IntVar(&pages, "pages", 0, "Number of pages named page_NNNN.png when no images are given")
	return cmd
}

// IngestRequest is the request body for ingesting book scans.
type IngestRequest struct {
	PDFPaths      []string `json:"pdf_paths"`
	BookID        string   `json:"book_id,omitempty"`
	KeepOriginals bool     `json:"keep_originals,omitempty"`
}

// IngestEndpoint handles POST /api/books/ingest.
type IngestEndpoint struct{}

var _ api.Endpoint = (*IngestEndpoint)(nil)

func (e *IngestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/ingest", e.handler
}

func (e *IngestEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ingest book scans
//	@Description	Render PDF files on the server into page images and create a paged book record
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IngestRequest	true	"Ingest request"
//	@Success		201		{object}	ingest.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/ingest [post]
func (e *IngestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.PDFPaths) == 0 {
		writeError(w, http.StatusBadRequest, "pdf_paths is required")
		return
	}

	in := svcctx.IngesterFrom(r.Context())
	if in == nil {
		writeError(w, http.StatusServiceUnavailable, "ingester not initialized")
		return
	}

	res, err := in.Ingest(r.Context(), ingest.Request{
		PDFPaths:      req.PDFPaths,
		BookID:        req.BookID,
		KeepOriginals: req.KeepOriginals,
		Logger:        svcctx.LoggerFrom(r.Context()),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (e *IngestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var bookID string
	var keep bool
	cmd := &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Ingest PDF scans as a new book",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The server reads the files, so send absolute paths
			paths := make([]string, len(args))
			for i, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return fmt.Errorf("invalid path %s: %w", p, err)
				}
				paths[i] = abs
			}

			client := api.NewClient(getServerURL())
			var resp ingest.Result
			req := IngestRequest{PDFPaths: paths, BookID: bookID, KeepOriginals: keep}
			if err := client.Post(cmd.Context(), "/api/books/ingest", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&bookID, "id", "", "Book id (default: derived from the first file name)")
	cmd.Flags().BoolVar(&keep, "keep-originals", false, "Copy the PDFs into the book's image directory")
	return cmd
}
