// Package docs provides generated OpenAPI documentation.
//
// clickread API
//
//	@title			clickread API
//	@version		1.0
//	@description	Page-region annotation API for picture books: pages, regions, translations and audio references.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/clickread
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/clickread/serve.go -o ./swagger --parseDependency --parseInternal
