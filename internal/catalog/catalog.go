package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// Catalog is the locally cached instrument list.
type Catalog struct {
	cfg    Config
	source Source
	logger *slog.Logger

	mu          sync.RWMutex
	instruments map[string]model.Instrument
	lastSyncAt  time.Time
	changes     chan Change

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Catalog.
func New(cfg Config, source Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.ChangeBuffer <= 0 {
		cfg.ChangeBuffer = def.ChangeBuffer
	}

	return &Catalog{
		cfg:         cfg,
		source:      source,
		logger:      logger.With("component", "catalog"),
		instruments: make(map[string]model.Instrument),
		changes:     make(chan Change, cfg.ChangeBuffer),
	}
}

// Start performs the initial sync and begins background reconciliation.
func (c *Catalog) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	syncCtx := c.ctx
	if c.cfg.InitialLoadTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(c.ctx, c.cfg.InitialLoadTimeout)
		defer cancel()
	}

	// Initial sync (blocking).
	if err := c.sync(syncCtx); err != nil {
		c.cancel()
		return fmt.Errorf("initial sync: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconciliationLoop(c.ctx)
	}()

	c.logger.Info("catalog started", "instruments", c.Len())
	return nil
}

// Stop gracefully shuts down.
func (c *Catalog) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("catalog stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instruments returns every known instrument ordered by id.
func (c *Catalog) Instruments() []model.Instrument {
	c.mu.RLock()
	out := make([]model.Instrument, 0, len(c.instruments))
	for _, inst := range c.instruments {
		out = append(out, inst)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every known instrument id in order.
func (c *Catalog) IDs() []string {
	insts := c.Instruments()
	ids := make([]string, len(insts))
	for i, inst := range insts {
		ids[i] = inst.ID
	}
	return ids
}

// Lookup returns the instrument with id.
func (c *Catalog) Lookup(id string) (model.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[id]
	return inst, ok
}

// Len returns the number of known instruments.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments)
}

// LastSyncAt returns the time of the last successful sync.
func (c *Catalog) LastSyncAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSyncAt
}

// Changes returns the channel of catalog changes. Changes are dropped
// when nobody drains the channel.
func (c *Catalog) Changes() <-chan Change {
	return c.changes
}

func (c *Catalog) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sync(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("reconciliation failed", "error", err)
			}
		}
	}
}

// sync replaces the cached set with the source's list and emits a change
// for every id that appeared or disappeared.
func (c *Catalog) sync(ctx context.Context) error {
	start := time.Now()

	list, err := c.source.ListTickers(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]model.Instrument, len(list))
	for _, inst := range list {
		next[inst.ID] = inst
	}

	var added, removed int

	c.mu.Lock()
	for id, inst := range next {
		if _, ok := c.instruments[id]; !ok {
			c.notifyLocked(Change{ID: id, EventType: ChangeAdded, Instrument: inst})
			added++
		}
	}
	for id, inst := range c.instruments {
		if _, ok := next[id]; !ok {
			c.notifyLocked(Change{ID: id, EventType: ChangeRemoved, Instrument: inst})
			removed++
		}
	}
	c.instruments = next
	c.lastSyncAt = time.Now()
	c.mu.Unlock()

	if added > 0 || removed > 0 {
		c.logger.Info("catalog changed",
			"added", added,
			"removed", removed,
			"duration", time.Since(start),
		)
	} else {
		c.logger.Debug("reconciliation complete",
			"instruments", len(next),
			"duration", time.Since(start),
		)
	}
	return nil
}

func (c *Catalog) notifyLocked(ch Change) {
	select {
	case c.changes <- ch:
	default:
		c.logger.Warn("change channel full, dropping", "id", ch.ID, "event", ch.EventType)
	}
}
