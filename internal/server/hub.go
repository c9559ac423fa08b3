package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/pricefeed/internal/model"
	"github.com/rickgao/pricefeed/internal/router"
)

// Subscriber is one streaming client of a ticker.
type Subscriber struct {
	ID     uuid.UUID
	Ticker string

	send chan []byte
	done chan struct{}
	once sync.Once
}

// Send returns the outbound frame queue.
func (s *Subscriber) Send() <-chan []byte {
	return s.send
}

// Done is closed when the subscriber is removed from the hub.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans price updates out to the subscribers of each ticker.
type Hub struct {
	logger     *slog.Logger
	sendBuffer int

	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]*Subscriber

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates an empty hub.
func NewHub(sendBuffer int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sendBuffer < 1 {
		sendBuffer = DefaultConfig().SendBuffer
	}
	return &Hub{
		logger:     logger.With("component", "hub"),
		sendBuffer: sendBuffer,
		subs:       make(map[string]map[uuid.UUID]*Subscriber),
	}
}

// Register adds a subscriber for ticker.
func (h *Hub) Register(ticker string) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.New(),
		Ticker: ticker,
		send:   make(chan []byte, h.sendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[ticker]
	if !ok {
		set = make(map[uuid.UUID]*Subscriber)
		h.subs[ticker] = set
	}
	set[sub.ID] = sub
	count := len(set)
	h.mu.Unlock()

	h.logger.Info("client connected", "ticker", ticker, "subscriber", sub.ID, "connections", count)
	return sub
}

// Unregister removes sub. Removing an absent subscriber is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	if h.remove(sub) {
		h.logger.Info("client disconnected", "ticker", sub.Ticker, "subscriber", sub.ID)
	}
}

// Publish sends a price_update frame to every subscriber of the update's
// ticker. Subscribers whose queue is full are dropped.
func (h *Hub) Publish(u model.PriceUpdate) {
	data, err := router.EncodePriceUpdate(u)
	if err != nil {
		h.logger.Error("encode update failed", "ticker", u.TickerID, "error", err)
		return
	}
	h.published.Add(1)
	h.broadcast(u.TickerID, data)
}

// SendError sends an error frame to every subscriber of ticker.
func (h *Hub) SendError(ticker, message string) {
	data, err := router.EncodeError(message)
	if err != nil {
		h.logger.Error("encode error frame failed", "ticker", ticker, "error", err)
		return
	}
	h.broadcast(ticker, data)
}

// ConnectionCount returns the number of subscribers for ticker.
func (h *Hub) ConnectionCount(ticker string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ticker])
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[uuid.UUID]*Subscriber)
	h.mu.Unlock()

	for _, set := range all {
		for _, sub := range set {
			sub.stop()
		}
	}
}

// Stats returns current statistics.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	h.mu.RUnlock()

	return HubStats{
		Subscribers: n,
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

func (h *Hub) broadcast(ticker string, data []byte) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs[ticker]))
	for _, sub := range h.subs[ticker] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.send <- data:
			h.delivered.Add(1)
		default:
			if h.remove(sub) {
				h.dropped.Add(1)
				h.logger.Warn("dropping slow client", "ticker", ticker, "subscriber", sub.ID)
			}
		}
	}
}

// remove reports whether sub was registered.
func (h *Hub) remove(sub *Subscriber) bool {
	h.mu.Lock()
	set, ok := h.subs[sub.Ticker]
	if ok {
		_, ok = set[sub.ID]
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.subs, sub.Ticker)
		}
	}
	h.mu.Unlock()

	sub.stop()
	return ok
}
