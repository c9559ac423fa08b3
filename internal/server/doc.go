// Package server exposes the price feed over HTTP and WebSocket.
//
// Routes:
//   - GET /health
//   - GET {prefix}/tickers
//   - GET {prefix}/tickers/{id}/history?limit=N (1..1000)
//   - GET /ws/{id} streams price_update frames for one ticker
//
// Unknown tickers on /ws/{id} are closed with code 4004.
package server
