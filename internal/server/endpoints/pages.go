package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/svcctx"
)

// PageSummary is a brief summary of a page.
type PageSummary struct {
	Index   int    `json:"index"`
	Number  int    `json:"page_number"`
	Image   string `json:"image"`
	Regions int    `json:"regions"`
}

// ListPagesResponse is the response for listing pages.
type ListPagesResponse struct {
	Pages      []PageSummary `json:"pages"`
	TotalPages int           `json:"total_pages"`
}

// ListPagesEndpoint handles GET /api/books/{book_id}/pages.
type ListPagesEndpoint struct{}

var _ api.Endpoint = (*ListPagesEndpoint)(nil)

func (e *ListPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages", e.handler
}

func (e *ListPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List pages
//	@Description	List the pages of a book in order with their region counts
//	@Tags			pages
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	ListPagesResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages [get]
func (e *ListPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var pages []PageSummary
	err := lib.View(r.PathValue("book_id"), func(b *book.Book) error {
		for i, p := range b.Pages() {
			regions, err := b.Store.PageByKey(p.Key())
			if err != nil {
				return err
			}
			pages = append(pages, PageSummary{Index: i, Number: p.Number, Image: p.Key(), Regions: len(regions)})
		}
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if pages == nil {
		pages = []PageSummary{}
	}

	writeJSON(w, http.StatusOK, ListPagesResponse{
		Pages:      pages,
		TotalPages: len(pages),
	})
}

func (e *ListPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <book_id>",
		Short: "List the pages of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListPagesResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PageImageEndpoint handles GET /api/books/{book_id}/pages/{page}/image.
type PageImageEndpoint struct{}

var _ api.Endpoint = (*PageImageEndpoint)(nil)

func (e *PageImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages/{page}/image", e.handler
}

func (e *PageImageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get page image
//	@Description	Get the image for a page of a book
//	@Tags			pages
//	@Produce		image/png
//	@Param			book_id	path		string	true	"Book ID"
//	@Param			page	path		int		true	"Page index (0-based)"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages/{page}/image [get]
func (e *PageImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var pageKey string
	err := lib.View(bookID, func(b *book.Book) error {
		var err error
		pageKey, err = b.Store.ResolvePageKey(page)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	imagePath, err := lib.Home().ImagePath(bookID, pageKey)
	if err != nil {
		writeErr(w, err)
		return
	}

	file, err := os.Open(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("image for page %d not found", page))
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, pageKey, fileInfo.ModTime(), file)
}

func (e *PageImageEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
