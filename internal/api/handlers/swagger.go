package handlers

import (
	"net/http"

	"github.com/mlhmz/hubspot-booking-api/api"
)

// ServeOpenAPISpec serves the embedded OpenAPI specification YAML file
func ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(api.OpenAPISpec)
}
