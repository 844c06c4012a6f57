package endpoints

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/config"
	"github.com/jackzampolin/clickread/internal/svcctx"
)

// SettingsResponse contains the effective config entries.
type SettingsResponse struct {
	File     string         `json:"file,omitempty"`
	Settings []config.Entry `json:"settings"`
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

var _ api.Endpoint = (*ListSettingsEndpoint)(nil)

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List all settings
//	@Description	Get the effective configuration. API keys are masked unless they reference an environment variable.
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "config not available")
		return
	}

	entries := mgr.Entries()
	for i := range entries {
		entries[i].Value = maskSecret(entries[i].Key, entries[i].Value)
	}
	writeJSON(w, http.StatusOK, SettingsResponse{File: mgr.File(), Settings: entries})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the server's effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

func maskSecret(key string, value any) any {
	if !strings.HasSuffix(key, "api_key") {
		return value
	}
	s, _ := value.(string)
	if s == "" || strings.HasPrefix(s, "${") {
		return value
	}
	return "********"
}
