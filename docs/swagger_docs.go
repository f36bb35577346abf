// Package docs holds the general API annotations for the portward OpenAPI
// document. Endpoint annotations live on the handlers in internal/api.
//
//go:generate swag init -g swagger_docs.go -d ./,../internal/api -o ./swagger --parseDependency --parseInternal
package docs

// @title portward API
// @version 1.0
// @description TCP port scanning service. Scans run asynchronously as jobs; results
// @description are pushed over a WebSocket and recorded as sessions in PostgreSQL.
//
// @contact.name portward maintainers
// @contact.url https://github.com/anstrom/portward
//
// @license.name MIT
// @license.url https://github.com/anstrom/portward/blob/main/LICENSE
//
// @host localhost:8080
// @BasePath /api/v1
