package subscription

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/history"
	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/router"
)

// Coordinator keeps at most one live subscription, always for the most
// recently observed subject.
type Coordinator struct {
	cfg       Config
	seed      SeedSource
	newStream StreamFactory
	logger    *slog.Logger
	onChange  func(State)

	// observeMu serializes subject switches with stream installation.
	observeMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	subject    string
	instrument *model.Instrument
	history    *history.Buffer[model.PricePoint]
	loading    bool
	errMsg     string
	connState  connection.State
	active     *subscription
	closed     bool
}

// subscription is the live binding for one subject.
type subscription struct {
	subject string
	gen     uint64
	cancel  context.CancelFunc

	// Set once the seed fetch resolves
	stream   Stream
	onPrice  *router.Handler
	onRemote *router.Handler
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOnChange registers fn to receive a snapshot after every state change.
// fn runs without internal locks held but must not call Observe or Close.
func WithOnChange(fn func(State)) Option {
	return func(c *Coordinator) {
		c.onChange = fn
	}
}

// New creates a coordinator observing nothing.
func New(cfg Config, seed SeedSource, newStream StreamFactory, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = def.SeedLimit
	}

	c := &Coordinator{
		cfg:       cfg,
		seed:      seed,
		newStream: newStream,
		logger:    logger.With("component", "subscription"),
		history:   history.New[model.PricePoint](cfg.HistoryCapacity),
		connState: connection.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe switches the coordinator to subject. An empty subject observes
// nothing. Observing the current subject again is a no-op.
func (c *Coordinator) Observe(subject string) error {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if subject == c.subject {
		c.mu.Unlock()
		return nil
	}

	c.gen++
	old := c.active
	c.active = nil
	c.subject = subject
	c.instrument = nil
	c.history.Reset()
	c.errMsg = ""
	c.loading = subject != ""
	c.connState = connection.StateIdle

	var sub *subscription
	var ctx context.Context
	if subject != "" {
		var cancel context.CancelFunc
		ctx, cancel = c.seedContext()
		sub = &subscription{subject: subject, gen: c.gen, cancel: cancel}
		c.active = sub
	}
	c.mu.Unlock()

	c.teardown(old)
	c.notify()

	if sub == nil {
		c.logger.Info("observing nothing")
		return nil
	}

	c.logger.Info("observing subject", "subject", subject)
	go c.load(ctx, sub)
	return nil
}

// Close tears down the current subscription and rejects further Observe
// calls. Close is idempotent.
func (c *Coordinator) Close() {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	old := c.active
	c.active = nil
	c.subject = ""
	c.instrument = nil
	c.history.Reset()
	c.loading = false
	c.errMsg = ""
	c.connState = connection.StateIdle
	c.mu.Unlock()

	c.teardown(old)
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Subject:         c.subject,
		History:         c.history.Snapshot(),
		Loading:         c.loading,
		Error:           c.errMsg,
		ConnectionState: c.connState,
	}
	if c.instrument != nil {
		inst := *c.instrument
		s.Instrument = &inst
	}
	return s
}

func (c *Coordinator) seedContext() (context.Context, context.CancelFunc) {
	if c.cfg.SeedTimeout > 0 {
		return context.WithTimeout(context.Background(), c.cfg.SeedTimeout)
	}
	return context.WithCancel(context.Background())
}

// load fetches the seed for sub and then opens its stream.
func (c *Coordinator) load(ctx context.Context, sub *subscription) {
	hist, err := c.seed.GetTickerHistory(ctx, sub.subject, c.cfg.SeedLimit)

	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	c.mu.Lock()
	if sub.gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale seed", "subject", sub.subject)
		return
	}
	c.loading = false
	if err != nil {
		c.errMsg = (&SeedError{Subject: sub.subject, Err: err}).Error()
	} else {
		inst := hist.Ticker
		c.instrument = &inst
		c.history.Reset()
		c.history.AppendAll(hist.History)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("seed fetch failed", "subject", sub.subject, "error", err)
	} else {
		c.logger.Debug("seed loaded", "subject", sub.subject, "points", len(hist.History))
	}
	c.notify()

	gen := sub.gen
	sub.onPrice = router.PriceUpdateHandler(func(u model.PriceUpdate) {
		c.applyUpdate(gen, u)
	})
	sub.onRemote = router.ErrorHandler(func(msg string) {
		c.logger.Warn("server reported error", "subject", sub.subject, "message", msg)
	})
	sub.stream = c.newStream(sub.subject)
	sub.stream.On(router.TypePriceUpdate, sub.onPrice)
	sub.stream.On(router.TypeError, sub.onRemote)
	sub.stream.Open(sub.subject, func(s connection.State) {
		c.setConnState(gen, s)
	})
}

// teardown must be called with observeMu held.
func (c *Coordinator) teardown(sub *subscription) {
	if sub == nil {
		return
	}
	sub.cancel()
	if sub.stream != nil {
		sub.stream.Off(router.TypePriceUpdate, sub.onPrice)
		sub.stream.Off(router.TypeError, sub.onRemote)
		sub.stream.Close()
		c.logger.Debug("stream closed", "subject", sub.subject)
	}
}

func (c *Coordinator) applyUpdate(gen uint64, u model.PriceUpdate) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if u.TickerID != c.subject {
		c.mu.Unlock()
		c.logger.Debug("dropping update for other subject", "ticker_id", u.TickerID)
		return
	}
	c.history.Append(u.Point())
	if c.instrument != nil {
		c.instrument.ApplyUpdate(u)
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Coordinator) setConnState(gen uint64, s connection.State) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.connState = s
	c.mu.Unlock()

	c.notify()
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

// ManagerFactory returns a StreamFactory backed by connection managers.
func ManagerFactory(cfg connection.ManagerConfig, logger *slog.Logger) StreamFactory {
	return func(string) Stream {
		return connection.NewManager(cfg, logger)
	}
}
