// Package api defines the JSON bodies exchanged over the gateway's HTTP
// surface, shared between the server and the CLI client.
package api

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a machine-readable error, e.g. the 501 from the
// scan stubs.
type ErrorResponse struct {
	Error string `json:"error"`
}
