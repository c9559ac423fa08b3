package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// pruneEvery is the number of ticks between prune passes.
const pruneEvery = 100

// Generator produces random-walk prices for a fixed set of tickers.
type Generator struct {
	cfg    Config
	repo   Repository
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	rng     *rand.Rand
	tickers map[string]*Ticker
	order   []string
	stats   Stats
	failing int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes price generation deterministic.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a new Generator. pub may be nil.
func NewGenerator(cfg Config, repo Repository, pub Publisher, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = def.UpdateInterval
	}
	if cfg.ConsecutiveErrors <= 0 {
		cfg.ConsecutiveErrors = def.ConsecutiveErrors
	}

	g := &Generator{
		cfg:     cfg,
		repo:    repo,
		pub:     pub,
		logger:  logger.With("component", "generator"),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		tickers: make(map[string]*Ticker),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize creates the tickers with random starting prices and stores
// each starting price. Calling it again is a no-op.
func (g *Generator) Initialize(ctx context.Context) error {
	g.mu.Lock()
	if len(g.tickers) > 0 {
		g.mu.Unlock()
		return nil
	}

	now := g.now().UTC()
	prices := make([]Price, 0, g.cfg.TickerCount)
	for i := 0; i < g.cfg.TickerCount; i++ {
		id := fmt.Sprintf("ITEM_%02d", i)
		initial := g.cfg.InitialPriceMin + g.rng.Float64()*(g.cfg.InitialPriceMax-g.cfg.InitialPriceMin)

		g.tickers[id] = &Ticker{
			ID:           id,
			Name:         fmt.Sprintf("Item %02d", i),
			InitialPrice: initial,
			CurrentPrice: initial,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		g.order = append(g.order, id)
		prices = append(prices, Price{TickerID: id, Value: initial, Timestamp: now})
	}
	g.mu.Unlock()

	if err := g.repo.AddPrices(ctx, prices); err != nil {
		return fmt.Errorf("store initial prices: %w", err)
	}

	g.logger.Info("initialized tickers", "count", len(prices))
	return nil
}

// Start initializes the tickers if needed and begins the update loop.
func (g *Generator) Start(ctx context.Context) error {
	if err := g.Initialize(ctx); err != nil {
		return err
	}

	g.ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go g.run()

	g.logger.Info("price generator started",
		"tickers", g.cfg.TickerCount,
		"interval", g.cfg.UpdateInterval,
	)

	return nil
}

// Stop gracefully shuts down the generator.
func (g *Generator) Stop(ctx context.Context) error {
	if g.cancel != nil {
		g.cancel()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("price generator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tickers returns a copy of every ticker, ordered by id.
func (g *Generator) Tickers() []Ticker {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Ticker, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.tickers[id])
	}
	return out
}

// Ticker returns a copy of one ticker.
func (g *Generator) Ticker(id string) (Ticker, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.tickers[id]
	if !ok {
		return Ticker{}, false
	}
	return *t, true
}

// Stats returns current statistics.
func (g *Generator) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}

// run is the main update loop.
func (g *Generator) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			if err := g.step(g.ctx); err != nil && !errors.Is(err, context.Canceled) {
				g.recordFailure(err)
			} else {
				g.recordSuccess()
			}
			g.maybePrune(g.ctx)
		}
	}
}

// step moves every price once, stores the batch and publishes it.
func (g *Generator) step(ctx context.Context) error {
	start := time.Now()

	g.mu.Lock()
	now := g.now().UTC()
	prices := make([]Price, 0, len(g.order))
	for _, id := range g.order {
		t := g.tickers[id]
		change := (g.rng.Float64()*2 - 1) * g.cfg.PriceChangeRange
		next := math.Max(MinPrice, t.CurrentPrice+change)

		t.CurrentPrice = next
		t.UpdatedAt = now
		prices = append(prices, Price{TickerID: id, Value: next, Timestamp: now})
	}
	g.stats.Ticks++
	g.mu.Unlock()

	if err := g.repo.AddPrices(ctx, prices); err != nil {
		return fmt.Errorf("store prices: %w", err)
	}

	if g.pub != nil {
		for _, p := range prices {
			g.pub.Publish(model.PriceUpdate{
				TickerID:  p.TickerID,
				Price:     p.Value,
				Timestamp: model.FormatTimestamp(p.Timestamp),
			})
		}
	}

	g.mu.Lock()
	g.stats.Published += int64(len(prices))
	g.stats.LastTickTook = time.Since(start)
	g.mu.Unlock()

	return nil
}

func (g *Generator) recordFailure(err error) {
	g.mu.Lock()
	g.stats.StoreErrors++
	g.failing++
	failing := g.failing
	g.mu.Unlock()

	if failing >= g.cfg.ConsecutiveErrors {
		g.logger.Error("price generation keeps failing", "consecutive", failing, "error", err)
		return
	}
	g.logger.Warn("price update failed", "consecutive", failing, "error", err)
}

func (g *Generator) recordSuccess() {
	g.mu.Lock()
	g.failing = 0
	g.mu.Unlock()
}

// maybePrune trims stores that keep unbounded history.
func (g *Generator) maybePrune(ctx context.Context) {
	p, ok := g.repo.(Pruner)
	if !ok || g.cfg.MaxHistory <= 0 {
		return
	}

	g.mu.RLock()
	due := g.stats.Ticks%pruneEvery == 0
	g.mu.RUnlock()
	if !due {
		return
	}

	n, err := p.Prune(ctx, g.cfg.MaxHistory)
	if err != nil {
		g.logger.Warn("prune failed", "error", err)
		return
	}

	g.mu.Lock()
	g.stats.Pruned += n
	g.mu.Unlock()
	if n > 0 {
		g.logger.Debug("pruned prices", "rows", n, "keep", g.cfg.MaxHistory)
	}
}
