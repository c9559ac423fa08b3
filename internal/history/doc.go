// Package history implements the Rolling History Buffer.
//
// A Buffer is a fixed-capacity ring that keeps the most recent N items in
// insertion order. Appending past capacity evicts the oldest items (FIFO).
// The client keeps the last 100 price points per observed instrument; the
// server reuses the same buffer for its per-ticker history.
package history
