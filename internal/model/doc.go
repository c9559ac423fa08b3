// Package model defines shared data types used across the price feed.
//
// The JSON shapes mirror the REST and WebSocket wire contract:
//   - GET /tickers returns []Instrument
//   - GET /tickers/{id}/history returns PriceHistory
//   - price_update frames carry a PriceUpdate in their "data" field
//
// Conventions:
//   - Prices: float64 in quote currency units
//   - Timestamps: ISO-8601 strings (RFC 3339, UTC) as sent on the wire
//   - IDs: string ticker ids (e.g. "ITEM_00")
package model
