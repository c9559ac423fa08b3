package catalog

import (
	"context"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// Source lists the available instruments.
type Source interface {
	ListTickers(ctx context.Context) ([]model.Instrument, error)
}

// Change event types
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// Change describes an instrument entering or leaving the catalog.
type Change struct {
	ID         string
	EventType  string // added or removed
	Instrument model.Instrument
}

// Config holds catalog configuration.
type Config struct {
	ReconcileInterval  time.Duration // Time between refreshes (default: 1m)
	InitialLoadTimeout time.Duration // Upper bound on the first sync (default: 30s)
	ChangeBuffer       int           // Pending change notifications (default: 100)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  time.Minute,
		InitialLoadTimeout: 30 * time.Second,
		ChangeBuffer:       100,
	}
}
