package feed

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// ErrTickerNotFound is returned for unknown ticker ids.
var ErrTickerNotFound = errors.New("ticker not found")

// MinPrice is the floor applied to every generated price.
const MinPrice = 0.01

// Ticker is a generated instrument.
type Ticker struct {
	ID           string
	Name         string
	InitialPrice float64
	CurrentPrice float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Price is one stored observation.
type Price struct {
	TickerID  string
	Value     float64
	Timestamp time.Time
}

// Repository stores price points per ticker.
type Repository interface {
	// AddPrices stores prices in order.
	AddPrices(ctx context.Context, prices []Price) error

	// History returns up to limit of the most recent prices for tickerID,
	// oldest first. limit <= 0 returns everything stored.
	History(ctx context.Context, tickerID string, limit int) ([]Price, error)

	// Latest returns the most recent price for tickerID.
	Latest(ctx context.Context, tickerID string) (Price, bool, error)
}

// Pruner is implemented by repositories that do not bound themselves.
type Pruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// Publisher receives every generated price update.
type Publisher interface {
	Publish(update model.PriceUpdate)
}

// PublisherFunc is a function adapter for Publisher.
type PublisherFunc func(model.PriceUpdate)

func (f PublisherFunc) Publish(u model.PriceUpdate) {
	f(u)
}

// TickerSource provides the current set of tickers.
type TickerSource interface {
	Tickers() []Ticker
	Ticker(id string) (Ticker, bool)
}

// Config holds generator configuration.
type Config struct {
	TickerCount       int           // Number of instruments (default: 10)
	UpdateInterval    time.Duration // Time between price moves (default: 1s)
	PriceChangeRange  float64       // Max absolute move per update (default: 1.0)
	InitialPriceMin   float64       // Lower bound of starting prices (default: 50)
	InitialPriceMax   float64       // Upper bound of starting prices (default: 200)
	ConsecutiveErrors int           // Failed updates before escalating (default: 10)
	MaxHistory        int           // Prices kept per ticker by pruning stores (0 = unbounded)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickerCount:       10,
		UpdateInterval:    time.Second,
		PriceChangeRange:  1.0,
		InitialPriceMin:   50,
		InitialPriceMax:   200,
		ConsecutiveErrors: 10,
		MaxHistory:        1000,
	}
}

// Stats contains generator statistics.
type Stats struct {
	Ticks        int64
	Published    int64
	StoreErrors  int64
	Pruned       int64
	LastTickTook time.Duration
}
