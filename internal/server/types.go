package server

import (
	"context"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// Close codes
const (
	CloseTickerNotFound = 4004
)

// History limit bounds
const (
	MinHistoryLimit = 1
	MaxHistoryLimit = 1000
)

// TickerService answers ticker queries.
type TickerService interface {
	Tickers() []model.Instrument
	TickerHistory(ctx context.Context, id string, limit int) (*model.PriceHistory, error)
	Exists(id string) bool
}

// Config holds server configuration.
type Config struct {
	APIPrefix    string        // Prefix for REST routes (default: /api/v1)
	CORSOrigins  []string      // Allowed browser origins; "*" allows any
	WriteTimeout time.Duration // Per-frame write deadline (default: 10s)
	SendBuffer   int           // Queued frames per subscriber (default: 64)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIPrefix:    "/api/v1",
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// HubStats contains hub statistics.
type HubStats struct {
	Subscribers int
	Published   int64
	Delivered   int64
	Dropped     int64 // Subscribers removed for falling behind
}
