// Package api carries the OpenAPI description of the HTTP service.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document served at /api/openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
