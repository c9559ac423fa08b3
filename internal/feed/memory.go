package feed

import (
	"context"
	"sync"

	"github.com/rickgao/pricefeed/internal/history"
)

// DefaultMaxHistory is the number of prices kept per ticker in memory.
const DefaultMaxHistory = 1000

// MemoryRepository keeps a bounded history per ticker.
type MemoryRepository struct {
	capacity int

	mu     sync.RWMutex
	series map[string]*history.Buffer[Price]
}

// NewMemoryRepository creates a repository keeping at most capacity prices
// per ticker.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity < 1 {
		capacity = DefaultMaxHistory
	}
	return &MemoryRepository{
		capacity: capacity,
		series:   make(map[string]*history.Buffer[Price]),
	}
}

// AddPrices stores prices in order, evicting the oldest beyond capacity.
func (r *MemoryRepository) AddPrices(_ context.Context, prices []Price) error {
	for _, p := range prices {
		r.buffer(p.TickerID, true).Append(p)
	}
	return nil
}

// History returns up to limit of the most recent prices, oldest first.
func (r *MemoryRepository) History(_ context.Context, tickerID string, limit int) ([]Price, error) {
	buf := r.buffer(tickerID, false)
	if buf == nil {
		return []Price{}, nil
	}
	return buf.Tail(limit), nil
}

// Latest returns the most recent price.
func (r *MemoryRepository) Latest(_ context.Context, tickerID string) (Price, bool, error) {
	buf := r.buffer(tickerID, false)
	if buf == nil {
		return Price{}, false, nil
	}
	p, ok := buf.Last()
	return p, ok, nil
}

// Stats returns buffer statistics per ticker.
func (r *MemoryRepository) Stats() map[string]history.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]history.Stats, len(r.series))
	for id, buf := range r.series {
		out[id] = buf.Stats()
	}
	return out
}

func (r *MemoryRepository) buffer(tickerID string, create bool) *history.Buffer[Price] {
	r.mu.RLock()
	buf, ok := r.series[tickerID]
	r.mu.RUnlock()
	if ok || !create {
		return buf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if buf, ok = r.series[tickerID]; !ok {
		buf = history.New[Price](r.capacity)
		r.series[tickerID] = buf
	}
	return buf
}
