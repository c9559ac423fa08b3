// Package api provides the REST client for the price feed server.
//
// Endpoints (relative to the API base, e.g. http://localhost:8000/api/v1):
//   - GET /tickers
//   - GET /tickers/{id}/history?limit=N
//
// Failed requests return *APIError. 5xx and 429 responses are retried with
// jittered exponential backoff.
package api
