// Package docs provides generated OpenAPI documentation.
//
// mangatl API
//
//	@title			mangatl API
//	@version		1.0
//	@description	Comic page translation: a GPU worker that detects and renders, and an orchestrator that
//	@description	sequences detect, translate and render per page and aggregates chapters.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/aakaka525-design/manga-translator-ui-sub001
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package docs

//go:generate swag init -g ../cmd/mangatl/serve.go -o . --outputTypes go --parseDependency --parseInternal
