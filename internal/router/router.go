package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher routes frames to handlers registered per frame type.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]map[*Handler]struct{}

	received    atomic.Int64
	dispatched  atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]map[*Handler]struct{}),
	}
}

// Register adds h for msgType. Registering an existing handle is a no-op.
func (d *Dispatcher) Register(msgType string, h *Handler) {
	if h == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.handlers[msgType]
	if !ok {
		set = make(map[*Handler]struct{})
		d.handlers[msgType] = set
	}
	set[h] = struct{}{}
}

// Deregister removes h for msgType. Removing an absent handle is a no-op.
func (d *Dispatcher) Deregister(msgType string, h *Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.handlers[msgType]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(d.handlers, msgType)
	}
}

// Clear drops every registration.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]map[*Handler]struct{})
}

// HandlerCount returns the number of handles registered for msgType.
func (d *Dispatcher) HandlerCount(msgType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[msgType])
}

// Dispatch delivers f to every handler registered for f.Type, exactly once
// each, on the caller's goroutine. Handlers may (de)register while running.
func (d *Dispatcher) Dispatch(f Frame) {
	d.mu.RLock()
	set := d.handlers[f.Type]
	targets := make([]*Handler, 0, len(set))
	for h := range set {
		targets = append(targets, h)
	}
	d.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	for _, h := range targets {
		h.fn(f)
	}
	d.dispatched.Add(1)
}

// DispatchRaw parses data and dispatches the resulting frame. Parse
// failures are counted and returned; unknown frame types are dropped.
func (d *Dispatcher) DispatchRaw(data []byte, receivedAt time.Time) error {
	d.received.Add(1)

	f, err := Parse(data)
	if err != nil {
		d.parseErrors.Add(1)
		return err
	}
	f.ReceivedAt = receivedAt

	switch f.Type {
	case TypePriceUpdate, TypeError:
		d.Dispatch(f)
	default:
		d.unknown.Add(1)
		d.logger.Debug("skipping frame type", "type", f.Type)
	}

	return nil
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	handlers := 0
	for _, set := range d.handlers {
		handlers += len(set)
	}
	d.mu.RUnlock()

	return Stats{
		FramesReceived:   d.received.Load(),
		FramesDispatched: d.dispatched.Load(),
		ParseErrors:      d.parseErrors.Load(),
		UnknownFrames:    d.unknown.Load(),
		Handlers:         handlers,
	}
}

// Parse decodes a raw frame.
func Parse(data []byte) (Frame, error) {
	var wire frameWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	f := Frame{Type: wire.Type}

	switch wire.Type {
	case "":
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	case TypePriceUpdate:
		if wire.Data == nil {
			return Frame{}, fmt.Errorf("%w: price_update without data", ErrMalformedFrame)
		}
		f.PriceUpdate = *wire.Data
	case TypeError:
		if wire.Message == nil {
			return Frame{}, fmt.Errorf("%w: error without message", ErrMalformedFrame)
		}
		f.Message = *wire.Message
	}

	return f, nil
}
