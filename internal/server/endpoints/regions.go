package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/editor"
	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/region"
	"github.com/jackzampolin/clickread/internal/svcctx"
)

// newSession opens an editor session over b for one request. Saving is
// left to the library, which writes the book after the request's
// mutation succeeds.
func newSession(r *http.Request, b *book.Book) (*editor.Session, error) {
	cfg := editor.Config{
		Store:  b.Store,
		Logger: svcctx.LoggerFrom(r.Context()),
	}
	if t := svcctx.TranslatorFrom(r.Context()); t != nil {
		cfg.Translator = t
	}
	if lib := svcctx.LibraryFrom(r.Context()); lib != nil {
		cfg.Audio = lib.Home().Audio(b.ID)
	}
	if c := svcctx.ConfigFrom(r.Context()); c != nil {
		cfg.DefaultCategory = c.Get().Category()
	}
	return editor.New(cfg)
}

// RegionsResponse lists the regions of one page.
type RegionsResponse struct {
	Page    int             `json:"page"`
	PageKey string          `json:"page_key"`
	Regions []region.Region `json:"regions"`
}

// ListRegionsEndpoint handles GET /api/books/{book_id}/pages/{page}/regions.
type ListRegionsEndpoint struct{}

var _ api.Endpoint = (*ListRegionsEndpoint)(nil)

func (e *ListRegionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages/{page}/regions", e.handler
}

func (e *ListRegionsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List page regions
//	@Description	List the regions of a page in insertion order, optionally limited to one category
//	@Tags			regions
//	@Produce		json
//	@Param			book_id		path		string	true	"Book ID"
//	@Param			page		path		int		true	"Page index (0-based)"
//	@Param			category	query		string	false	"Word, Sentence or Full Text"
//	@Success		200			{object}	RegionsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages/{page}/regions [get]
func (e *ListRegionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}

	var category region.Category
	if c := r.URL.Query().Get("category"); c != "" {
		parsed, err := region.ParseCategory(c)
		if err != nil {
			writeErr(w, err)
			return
		}
		category = parsed
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	resp := RegionsResponse{Page: page}
	err := lib.View(r.PathValue("book_id"), func(b *book.Book) error {
		key, err := b.Store.ResolvePageKey(page)
		if err != nil {
			return err
		}
		resp.PageKey = key
		resp.Regions, err = b.Store.Filter(key, category)
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if resp.Regions == nil {
		resp.Regions = []region.Region{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListRegionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "regions <book_id> <page>",
		Short: "List the regions of a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/books/%s/pages/%s/regions", args[0], args[1])
			if category != "" {
				path += "?category=" + url.QueryEscape(category)
			}
			client := api.NewClient(getServerURL())
			var resp RegionsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list regions of this category")
	return cmd
}

// CreateRegionRequest is the request body for adding a region.
type CreateRegionRequest struct {
	Text        string          `json:"text"`
	Translation string          `json:"translation,omitempty"`
	Category    region.Category `json:"category,omitempty"`
	Geometry    geom.Corners    `json:"geometry"`
	// Suggest fills an empty translation from the configured translator.
	Suggest bool `json:"suggest,omitempty"`
}

// CreateRegionEndpoint handles POST /api/books/{book_id}/pages/{page}/regions.
type CreateRegionEndpoint struct{}

var _ api.Endpoint = (*CreateRegionEndpoint)(nil)

func (e *CreateRegionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/pages/{page}/regions", e.handler
}

func (e *CreateRegionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Add region
//	@Description	Add a region to a page and save the book
//	@Tags			regions
//	@Accept			json
//	@Produce		json
//	@Param			book_id	path		string				true	"Book ID"
//	@Param			page	path		int					true	"Page index (0-based)"
//	@Param			request	body		CreateRegionRequest	true	"Region"
//	@Success		201		{object}	region.Region
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages/{page}/regions [post]
func (e *CreateRegionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}

	var req CreateRegionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	var created region.Region
	err := lib.Update(r.PathValue("book_id"), func(b *book.Book) error {
		s, err := newSession(r, b)
		if err != nil {
			return err
		}
		if err := s.Open(page); err != nil {
			return err
		}
		if err := s.Propose(req.Geometry); err != nil {
			return err
		}
		s.SetForm(editor.Form{Text: req.Text, Translation: req.Translation, Category: req.Category})
		if req.Suggest && req.Translation == "" {
			if _, err := s.SuggestTranslation(r.Context()); err != nil {
				return err
			}
		}
		created, err = s.Confirm()
		return err
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (e *CreateRegionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CreateRegionRequest
	var category string
	cmd := &cobra.Command{
		Use:   "add-region <book_id> <page> <x1> <y1> <x2> <y2>",
		Short: "Add a region to a page",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := geom.ParseCorners(strings.Join(args[2:], ","))
			if err != nil {
				return err
			}
			req.Geometry = c
			if category != "" {
				cat, err := region.ParseCategory(category)
				if err != nil {
					return err
				}
				req.Category = cat
			}
			client := api.NewClient(getServerURL())
			var resp region.Region
			path := fmt.Sprintf("/api/books/%s/pages/%s/regions", args[0], args[1])
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Text, "text", "", "Region text (required)")
	cmd.Flags().StringVar(&req.Translation, "translation", "", "Translation")
	cmd.Flags().StringVar(&category, "category", "", "Word, Sentence or Full Text")
	cmd.Flags().BoolVar(&req.Suggest, "suggest", false, "Fill an empty translation from the translator")
	cmd.MarkFlagRequired("text")
	return cmd
}

// UpdateRegionResponse is the updated region plus any audio warnings.
type UpdateRegionResponse struct {
	Region   region.Region `json:"region"`
	Warnings []string      `json:"warnings,omitempty"`
}

// UpdateRegionEndpoint handles PATCH /api/books/{book_id}/regions/{region_id}.
type UpdateRegionEndpoint struct{}

var _ api.Endpoint = (*UpdateRegionEndpoint)(nil)

func (e *UpdateRegionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/books/{book_id}/regions/{region_id}", e.handler
}

func (e *UpdateRegionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update region
//	@Description	Change text, translation, category, geometry or audio of a region and save the book. An audio file that cannot be found is cleared and reported as a warning.
//	@Tags			regions
//	@Accept			json
//	@Produce		json
//	@Param			book_id		path		string			true	"Book ID"
//	@Param			region_id	path		string			true	"Region ID"
//	@Param			request		body		region.Patch	true	"Fields to change"
//	@Success		200			{object}	UpdateRegionResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/books/{book_id}/regions/{region_id} [patch]
func (e *UpdateRegionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var patch region.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return
	}

	id := r.PathValue("region_id")
	var resp UpdateRegionResponse
	err := lib.Update(r.PathValue("book_id"), func(b *book.Book) error {
		current, err := b.Store.Get(id)
		if err != nil {
			return err
		}
		s, err := newSession(r, b)
		if err != nil {
			return err
		}
		if err := s.OpenKey(current.PageKey); err != nil {
			return err
		}
		if resp.Region, err = s.Select(id); err != nil {
			return err
		}

		// Clearing an audio field needs no lookup, so it rides with the core patch.
		core := patch
		core.EnglishAudioFile, core.ChineseAudioFile = nil, nil
		attach := []struct {
			lang string
			name *string
		}{
			{editor.LangEnglish, patch.EnglishAudioFile},
			{editor.LangChinese, patch.ChineseAudioFile},
		}
		if n := patch.EnglishAudioFile; n != nil && *n == "" {
			core.EnglishAudioFile = n
		}
		if n := patch.ChineseAudioFile; n != nil && *n == "" {
			core.ChineseAudioFile = n
		}
		if !core.Empty() {
			if resp.Region, err = s.Update(core); err != nil {
				return err
			}
		}

		for _, a := range attach {
			if a.name == nil || *a.name == "" {
				continue
			}
			updated, err := s.AttachAudio(a.lang, *a.name)
			if errors.Is(err, region.ErrConsistency) {
				return err
			}
			resp.Region = updated
			if err != nil {
				resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s audio: %v", a.lang, err))
			}
		}
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *UpdateRegionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var text, translation, category, english, chinese, geometry string
	cmd := &cobra.Command{
		Use:   "update-region <book_id> <region_id>",
		Short: "Update a region",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch region.Patch
			flags := cmd.Flags()
			if flags.Changed("text") {
				patch.Text = &text
			}
			if flags.Changed("translation") {
				patch.Translation = &translation
			}
			if flags.Changed("category") {
				cat, err := region.ParseCategory(category)
				if err != nil {
					return err
				}
				patch.Category = &cat
			}
			if flags.Changed("english-audio") {
				patch.EnglishAudioFile = &english
			}
			if flags.Changed("chinese-audio") {
				patch.ChineseAudioFile = &chinese
			}
			if flags.Changed("geometry") {
				c, err := geom.ParseCorners(geometry)
				if err != nil {
					return err
				}
				patch.Geometry = &c
			}
			if patch.Empty() {
				return fmt.Errorf("at least one field flag must be specified")
			}

			client := api.NewClient(getServerURL())
			var resp UpdateRegionResponse
			path := fmt.Sprintf("/api/books/%s/regions/%s", args[0], args[1])
			if err := client.Patch(cmd.Context(), path, patch, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "New text")
	cmd.Flags().StringVar(&translation, "translation", "", "New translation")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&english, "english-audio", "", "English audio file name (empty clears)")
	cmd.Flags().StringVar(&chinese, "chinese-audio", "", "Chinese audio file name (empty clears)")
	cmd.Flags().StringVar(&geometry, "geometry", "", "New corners as x1,y1,x2,y2")
	return cmd
}

// DeleteRegionEndpoint handles DELETE /api/books/{book_id}/pages/{page}/regions/{region_id}.
type DeleteRegionEndpoint struct{}

var _ api.Endpoint = (*DeleteRegionEndpoint)(nil)

func (e *DeleteRegionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}/pages/{page}/regions/{region_id}", e.handler
}

func (e *DeleteRegionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete region
//	@Description	Delete a region from a page by id and save the book
//	@Tags			regions
//	@Param			book_id		path	string	true	"Book ID"
//	@Param			page		path	int		true	"Page index (0-based)"
//	@Param			region_id	path	string	true	"Region ID"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages/{page}/regions/{region_id} [delete]
func (e *DeleteRegionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	err := lib.Update(r.PathValue("book_id"), func(b *book.Book) error {
		s, err := newSession(r, b)
		if err != nil {
			return err
		}
		if err := s.Open(page); err != nil {
			return err
		}
		if _, err := s.Select(r.PathValue("region_id")); err != nil {
			return err
		}
		return s.Delete()
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteRegionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-region <book_id> <page> <region_id>",
		Short: "Delete a region",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := fmt.Sprintf("/api/books/%s/pages/%s/regions/%s", args[0], args[1], args[2])
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Deleted region %s\n", args[2])
			return nil
		},
	}
}
