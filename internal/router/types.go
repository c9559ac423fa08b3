package router

import (
	"errors"
	"time"

	"github.com/rickgao/pricefeed/internal/model"
)

// Frame types
const (
	TypePriceUpdate = "price_update"
	TypeError       = "error"
)

// ErrMalformedFrame is returned for frames that cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded inbound message.
type Frame struct {
	Type       string
	ReceivedAt time.Time

	// Set for price_update frames
	PriceUpdate model.PriceUpdate

	// Set for error frames
	Message string
}

// Handler is an opaque callback handle. Handles are compared by identity,
// so registering the same handle twice delivers once.
type Handler struct {
	fn func(Frame)
}

// NewHandler wraps fn in a registrable handle.
func NewHandler(fn func(Frame)) *Handler {
	return &Handler{fn: fn}
}

// PriceUpdateHandler returns a handle that receives price_update payloads.
func PriceUpdateHandler(fn func(model.PriceUpdate)) *Handler {
	return NewHandler(func(f Frame) {
		if f.Type == TypePriceUpdate {
			fn(f.PriceUpdate)
		}
	})
}

// ErrorHandler returns a handle that receives error frame messages.
func ErrorHandler(fn func(string)) *Handler {
	return NewHandler(func(f Frame) {
		if f.Type == TypeError {
			fn(f.Message)
		}
	})
}

// Stats contains dispatcher statistics.
type Stats struct {
	FramesReceived   int64
	FramesDispatched int64
	ParseErrors      int64
	UnknownFrames    int64
	Handlers         int
}

// Wire types for JSON parsing

// frameWire is the envelope of every frame.
type frameWire struct {
	Type    string             `json:"type"`
	Data    *model.PriceUpdate `json:"data,omitempty"`
	Message *string            `json:"message,omitempty"`
}
