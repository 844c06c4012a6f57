package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/region"
	"github.com/jackzampolin/clickread/internal/svcctx"
)

// TranslateRequest is the request body for a translation suggestion.
type TranslateRequest struct {
	Text string `json:"text"`
}

// TranslateResponse carries the suggestion. Fallback is set when the
// translator failed and the source text was returned instead.
type TranslateResponse struct {
	Translation string `json:"translation"`
	Provider    string `json:"provider"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// TranslateEndpoint handles POST /api/translate.
type TranslateEndpoint struct{}

var _ api.Endpoint = (*TranslateEndpoint)(nil)

func (e *TranslateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translate", e.handler
}

func (e *TranslateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Suggest translation
//	@Description	Translate text with the configured provider. Failures return the source text with fallback set.
//	@Tags			translate
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TranslateRequest	true	"Text"
//	@Success		200		{object}	TranslateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/translate [post]
func (e *TranslateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := region.CleanText(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	client := svcctx.TranslatorFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "translator not initialized")
		return
	}

	resp := TranslateResponse{Provider: client.Name()}
	tr, err := client.TranslateText(r.Context(), text)
	if err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("translation failed, returning source text", "provider", client.Name(), "error", err)
		}
		resp.Translation = text
		resp.Fallback = true
	} else {
		resp.Translation = tr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *TranslateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <text>...",
		Short: "Suggest a translation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TranslateResponse
			req := TranslateRequest{Text: strings.Join(args, " ")}
			if err := client.Post(cmd.Context(), "/api/translate", req, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Println(resp.Translation)
			return nil
		},
	}
}
