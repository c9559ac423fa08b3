package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/history"
	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/router"
)

// ErrClosed is returned by Observe after Close.
var ErrClosed = errors.New("coordinator closed")

// SeedSource provides the initial history for a subject.
type SeedSource interface {
	GetTickerHistory(ctx context.Context, id string, limit int) (*model.PriceHistory, error)
}

// Stream is a connection that can be opened for one subject.
type Stream interface {
	Open(subject string, onState connection.StateFunc)
	Close()
	On(msgType string, h *router.Handler)
	Off(msgType string, h *router.Handler)
}

// StreamFactory creates a stream for subject.
type StreamFactory func(subject string) Stream

// Config configures a Coordinator.
type Config struct {
	HistoryCapacity int           // Points kept per subject
	SeedLimit       int           // Points requested from the seed source
	SeedTimeout     time.Duration // Extra bound on a seed fetch (default: 0, none; the seed source applies its own)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: history.DefaultCapacity,
		SeedLimit:       history.DefaultCapacity,
	}
}

// State is the consumer-facing view of the observed subject.
type State struct {
	Subject         string
	Instrument      *model.Instrument // nil until the seed arrives
	History         []model.PricePoint
	Loading         bool
	Error           string
	ConnectionState connection.State
}

// SeedError reports a failed seed fetch.
type SeedError struct {
	Subject string
	Err     error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("load history for %s: %v", e.Subject, e.Err)
}

func (e *SeedError) Unwrap() error {
	return e.Err
}
