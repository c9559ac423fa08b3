package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/pricefeed/internal/connection"
	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/router"
)

// fakeSeed serves canned histories. A subject with a gate blocks until the
// gate is closed.
type fakeSeed struct {
	mu     sync.Mutex
	data   map[string]*model.PriceHistory
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  map[string]int
	limits []int
}

func newFakeSeed() *fakeSeed {
	return &fakeSeed{
		data:  make(map[string]*model.PriceHistory),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
		calls: make(map[string]int),
	}
}

func (s *fakeSeed) GetTickerHistory(ctx context.Context, id string, limit int) (*model.PriceHistory, error) {
	s.mu.Lock()
	s.calls[id]++
	s.limits = append(s.limits, limit)
	gate := s.gates[id]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	h, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("ticker %s not found", id)
	}
	cp := *h
	cp.History = append([]model.PricePoint(nil), h.History...)
	return &cp, nil
}

func (s *fakeSeed) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

// fakeStream records its lifecycle and lets tests emit frames.
type fakeStream struct {

	mu       sync.Mutex
	subject  string
	onState  connection.StateFunc
	handlers map[string]map[*router.Handler]struct{}
	open     bool
	closed   bool
}

// fakeNet tracks every stream created by a factory.
type fakeNet struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (n *fakeNet) factory(string) Stream {
	s := &fakeStream{handlers: make(map[string]map[*router.Handler]struct{})}
	n.mu.Lock()
	n.streams = append(n.streams, s)
	n.mu.Unlock()
	return s
}

func (n *fakeNet) all() []*fakeStream {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*fakeStream(nil), n.streams...)
}

func (n *fakeNet) openCount() int {
	count := 0
	for _, s := range n.all() {
		if s.isOpen() {
			count++
		}
	}
	return count
}

func (n *fakeNet) latest() *fakeStream {
	all := n.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (s *fakeStream) Open(subject string, onState connection.StateFunc) {
	s.mu.Lock()
	s.subject = subject
	s.onState = onState
	s.open = true
	s.mu.Unlock()

	onState(connection.StateConnecting)
	onState(connection.StateOpen)
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	s.open = false
	s.closed = true
	s.handlers = make(map[string]map[*router.Handler]struct{})
	s.mu.Unlock()
}

func (s *fakeStream) On(msgType string, h *router.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[msgType] == nil {
		s.handlers[msgType] = make(map[*router.Handler]struct{})
	}
	s.handlers[msgType][h] = struct{}{}
}

func (s *fakeStream) Off(msgType string, h *router.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers[msgType], h)
}

func (s *fakeStream) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeStream) subj() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) handlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.handlers {
		n += len(set)
	}
	return n
}

func (s *fakeStream) priceHandlers() []*router.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hs []*router.Handler
	for h := range s.handlers[router.TypePriceUpdate] {
		hs = append(hs, h)
	}
	return hs
}

func (s *fakeStream) emit(u model.PriceUpdate) {
	d := router.NewDispatcher(nil)
	for _, h := range s.priceHandlers() {
		d.Register(router.TypePriceUpdate, h)
	}
	d.Dispatch(router.Frame{Type: router.TypePriceUpdate, PriceUpdate: u})
}

func (s *fakeStream) emitError(msg string) {
	s.mu.Lock()
	var hs []*router.Handler
	for h := range s.handlers[router.TypeError] {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	d := router.NewDispatcher(nil)
	for _, h := range hs {
		d.Register(router.TypeError, h)
	}
	d.Dispatch(router.Frame{Type: router.TypeError, Message: msg})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func aaplSeed() *model.PriceHistory {
	return &model.PriceHistory{
		Ticker: model.Instrument{
			ID:           "AAPL",
			Name:         "Apple",
			CurrentPrice: 150.0,
			InitialPrice: 149.5,
			CreatedAt:    "2024-01-15T09:59:00Z",
			UpdatedAt:    "2024-01-15T10:00:00Z",
		},
		History: []model.PricePoint{
			{Value: 149.5, Timestamp: "2024-01-15T09:59:00Z"},
			{Value: 150.0, Timestamp: "2024-01-15T10:00:00Z"},
		},
	}
}

func values(points []model.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestCoordinator(seed *fakeSeed, n *fakeNet, opts ...Option) *Coordinator {
	return New(DefaultConfig(), seed, n.factory, nil, opts...)
}

func TestCoordinator_SeedThenLiveUpdate(t *testing.T) {
	seed := newFakeSeed()
	seed.data["AAPL"] = aaplSeed()
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	if err := c.Observe("AAPL"); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	waitFor(t, "stream open", func() bool {
		return c.Snapshot().ConnectionState == connection.StateOpen
	})

	s := c.Snapshot()
	if s.Loading {
		t.Error("expected Loading = false after seed")
	}
	if s.Instrument == nil || s.Instrument.CurrentPrice != 150.0 {
		t.Fatalf("Instrument = %+v, want current_price 150.0", s.Instrument)
	}
	if got := values(s.History); !equalFloats(got, []float64{149.5, 150.0}) {
		t.Errorf("History = %v, want [149.5 150]", got)
	}

	n.latest().emit(model.PriceUpdate{TickerID: "AAPL", Price: 150.25, Timestamp: "2024-01-15T10:00:01Z"})

	s = c.Snapshot()
	if s.Instrument.CurrentPrice != 150.25 {
		t.Errorf("CurrentPrice = %v, want 150.25", s.Instrument.CurrentPrice)
	}
	if s.Instrument.UpdatedAt != "2024-01-15T10:00:01Z" {
		t.Errorf("UpdatedAt = %q, want 2024-01-15T10:00:01Z", s.Instrument.UpdatedAt)
	}
	if s.Instrument.Name != "Apple" || s.Instrument.InitialPrice != 149.5 {
		t.Errorf("unexpected instrument fields changed: %+v", s.Instrument)
	}
	if got := values(s.History); !equalFloats(got, []float64{149.5, 150.0, 150.25}) {
		t.Errorf("History = %v, want [149.5 150 150.25]", got)
	}
}

func TestCoordinator_StaleSeedDiscarded(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{
		Ticker:  model.Instrument{ID: "A", CurrentPrice: 1},
		History: []model.PricePoint{{Value: 1}},
	}
	seed.data["B"] = &model.PriceHistory{
		Ticker:  model.Instrument{ID: "B", CurrentPrice: 2},
		History: []model.PricePoint{{Value: 2}},
	}
	gate := make(chan struct{})
	seed.gates["A"] = gate

	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "seed A requested", func() bool { return seed.callCount("A") == 1 })

	c.Observe("B")
	waitFor(t, "B open", func() bool {
		return c.Snapshot().ConnectionState == connection.StateOpen
	})

	close(gate)
	time.Sleep(50 * time.Millisecond)

	s := c.Snapshot()
	if s.Subject != "B" {
		t.Errorf("Subject = %q, want B", s.Subject)
	}
	if s.Instrument == nil || s.Instrument.ID != "B" {
		t.Errorf("Instrument = %+v, want B", s.Instrument)
	}
	if got := values(s.History); !equalFloats(got, []float64{2}) {
		t.Errorf("History = %v, want [2]", got)
	}

	streams := n.all()
	if len(streams) != 1 {
		t.Fatalf("streams created = %d, want 1", len(streams))
	}
	if streams[0].subj() != "B" {
		t.Errorf("stream subject = %q, want B", streams[0].subj())
	}
}

func TestCoordinator_AtMostOneOpenStream(t *testing.T) {
	seed := newFakeSeed()
	for _, id := range []string{"A", "B", "C"} {
		seed.data[id] = &model.PriceHistory{Ticker: model.Instrument{ID: id}}
	}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	for _, id := range []string{"A", "B", "C"} {
		c.Observe(id)
		want := id
		waitFor(t, "open "+id, func() bool {
			s := n.latest()
			return s != nil && s.isOpen() && s.subj() == want
		})
		if got := n.openCount(); got != 1 {
			t.Fatalf("open streams after observing %s = %d, want 1", id, got)
		}
	}

	streams := n.all()
	for _, s := range streams[:len(streams)-1] {
		if !s.isClosed() {
			t.Errorf("stream %s not closed", s.subj())
		}
		if s.handlerCount() != 0 {
			t.Errorf("stream %s still has %d handlers", s.subj(), s.handlerCount())
		}
	}
}

func TestCoordinator_StaleUpdatesDiscarded(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{Ticker: model.Instrument{ID: "A"}}
	seed.data["B"] = &model.PriceHistory{Ticker: model.Instrument{ID: "B"}}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "A open", func() bool { return n.openCount() == 1 })
	stale := n.latest().priceHandlers()

	c.Observe("B")
	waitFor(t, "B open", func() bool {
		s := n.latest()
		return s.subj() == "B" && s.isOpen()
	})

	d := router.NewDispatcher(nil)
	for _, h := range stale {
		d.Register(router.TypePriceUpdate, h)
	}
	d.Dispatch(router.Frame{
		Type:        router.TypePriceUpdate,
		PriceUpdate: model.PriceUpdate{TickerID: "B", Price: 9},
	})

	if got := len(c.Snapshot().History); got != 0 {
		t.Errorf("History len = %d, want 0 (stale handler must be ignored)", got)
	}
}

func TestCoordinator_SeedErrorSurfaced(t *testing.T) {
	seed := newFakeSeed()
	seed.errs["BAD"] = errors.New("status 500")
	seed.data["GOOD"] = &model.PriceHistory{
		Ticker:  model.Instrument{ID: "GOOD", CurrentPrice: 10},
		History: []model.PricePoint{{Value: 10}},
	}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("BAD")
	waitFor(t, "BAD stream open", func() bool {
		return c.Snapshot().ConnectionState == connection.StateOpen
	})

	s := c.Snapshot()
	if s.Loading {
		t.Error("expected Loading = false after failure")
	}
	if !strings.Contains(s.Error, "status 500") {
		t.Errorf("Error = %q, want it to mention status 500", s.Error)
	}
	if s.Instrument != nil {
		t.Errorf("Instrument = %+v, want nil", s.Instrument)
	}

	n.latest().emit(model.PriceUpdate{TickerID: "BAD", Price: 3})
	if got := values(c.Snapshot().History); !equalFloats(got, []float64{3}) {
		t.Errorf("History = %v, want [3]", got)
	}

	c.Observe("GOOD")
	waitFor(t, "GOOD seeded", func() bool {
		s := c.Snapshot()
		return s.Instrument != nil && s.Instrument.ID == "GOOD"
	})
	if s := c.Snapshot(); s.Error != "" {
		t.Errorf("Error = %q, want cleared", s.Error)
	}
}

func TestCoordinator_ObserveSameSubjectNoop(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{Ticker: model.Instrument{ID: "A"}}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "open", func() bool { return n.openCount() == 1 })
	c.Observe("A")
	time.Sleep(20 * time.Millisecond)

	if got := seed.callCount("A"); got != 1 {
		t.Errorf("seed calls = %d, want 1", got)
	}
	if got := len(n.all()); got != 1 {
		t.Errorf("streams = %d, want 1", got)
	}
}

func TestCoordinator_ObserveNothing(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = aaplSeed()
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "open", func() bool { return n.openCount() == 1 })

	c.Observe("")

	s := c.Snapshot()
	if s.Subject != "" || s.Instrument != nil || len(s.History) != 0 {
		t.Errorf("state = %+v, want empty", s)
	}
	if s.Loading {
		t.Error("expected Loading = false")
	}
	if s.ConnectionState != connection.StateIdle {
		t.Errorf("ConnectionState = %v, want idle", s.ConnectionState)
	}
	if n.openCount() != 0 {
		t.Errorf("open streams = %d, want 0", n.openCount())
	}
}

func TestCoordinator_ForeignTickerDropped(t *testing.T) {
	seed := newFakeSeed()
	seed.data["AAPL"] = aaplSeed()
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("AAPL")
	waitFor(t, "open", func() bool { return n.openCount() == 1 })

	n.latest().emit(model.PriceUpdate{TickerID: "MSFT", Price: 400})
	n.latest().emitError("rate limited")

	s := c.Snapshot()
	if s.Instrument.CurrentPrice != 150.0 {
		t.Errorf("CurrentPrice = %v, want 150.0", s.Instrument.CurrentPrice)
	}
	if len(s.History) != 2 {
		t.Errorf("History len = %d, want 2", len(s.History))
	}
	if s.Error != "" {
		t.Errorf("Error = %q, want server error frames not surfaced", s.Error)
	}
}

func TestCoordinator_HistoryBounded(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{Ticker: model.Instrument{ID: "A"}}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "open", func() bool { return n.openCount() == 1 })

	s := n.latest()
	for i := 0; i < 150; i++ {
		s.emit(model.PriceUpdate{TickerID: "A", Price: float64(i)})
	}

	h := c.Snapshot().History
	if len(h) != 100 {
		t.Fatalf("History len = %d, want 100", len(h))
	}
	if h[0].Value != 50 || h[99].Value != 149 {
		t.Errorf("History = [%v .. %v], want [50 .. 149]", h[0].Value, h[99].Value)
	}
	for i := 1; i < len(h); i++ {
		if h[i].Value <= h[i-1].Value {
			t.Fatalf("History out of order at %d", i)
		}
	}
}

func TestCoordinator_SeedLimit(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{Ticker: model.Instrument{ID: "A"}}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)
	defer c.Close()

	c.Observe("A")
	waitFor(t, "seed", func() bool { return seed.callCount("A") == 1 })

	seed.mu.Lock()
	defer seed.mu.Unlock()
	if seed.limits[0] != 100 {
		t.Errorf("limit = %d, want 100", seed.limits[0])
	}
}

func TestCoordinator_OnChange(t *testing.T) {
	seed := newFakeSeed()
	seed.data["AAPL"] = aaplSeed()
	n := &fakeNet{}

	var mu sync.Mutex
	var states []State
	c := newTestCoordinator(seed, n, WithOnChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	defer c.Close()

	c.Observe("AAPL")
	waitFor(t, "open", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && states[len(states)-1].ConnectionState == connection.StateOpen
	})

	mu.Lock()
	defer mu.Unlock()
	if !states[0].Loading || states[0].Subject != "AAPL" {
		t.Errorf("first state = %+v, want loading AAPL", states[0])
	}
}

func TestCoordinator_Close(t *testing.T) {
	seed := newFakeSeed()
	seed.data["A"] = &model.PriceHistory{Ticker: model.Instrument{ID: "A"}}
	n := &fakeNet{}
	c := newTestCoordinator(seed, n)

	c.Observe("A")
	waitFor(t, "open", func() bool { return n.openCount() == 1 })

	c.Close()
	c.Close()

	if n.openCount() != 0 {
		t.Errorf("open streams = %d, want 0", n.openCount())
	}
	if err := c.Observe("A"); !errors.Is(err, ErrClosed) {
		t.Errorf("Observe after Close = %v, want ErrClosed", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HistoryCapacity != 100 || cfg.SeedLimit != 100 {
		t.Errorf("capacity/limit = %d/%d, want 100/100", cfg.HistoryCapacity, cfg.SeedLimit)
	}
	if cfg.SeedTimeout != 0 {
		t.Errorf("SeedTimeout = %v, want 0 (bounded by the seed source)", cfg.SeedTimeout)
	}
}
