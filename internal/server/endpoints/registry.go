package endpoints

import (
	"github.com/jackzampolin/clickread/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Book endpoints
		&ListBooksEndpoint{},
		&CreateBookEndpoint{},
		&IngestEndpoint{},
		&GetBookEndpoint{},

		// Page endpoints
		&ListPagesEndpoint{},
		&PageImageEndpoint{},

		// Region endpoints
		&ListRegionsEndpoint{},
		&CreateRegionEndpoint{},
		&UpdateRegionEndpoint{},
		&DeleteRegionEndpoint{},

		// Translation
		&TranslateEndpoint{},

		// Settings
		&ListSettingsEndpoint{},

		// API docs
		&SwaggerEndpoint{},
	}
}
