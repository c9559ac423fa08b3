package model

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout used for every timestamp on the wire.
const TimestampLayout = time.RFC3339Nano

// Instrument is a tradeable ticker as returned by the data-access API.
type Instrument struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	InitialPrice float64 `json:"initial_price"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// ApplyUpdate sets the live price fields from a price update.
// All other fields are left untouched.
func (i *Instrument) ApplyUpdate(u PriceUpdate) {
	i.CurrentPrice = u.Price
	i.UpdatedAt = u.Timestamp
}

// PricePoint is a single observed price. Never mutated after creation.
type PricePoint struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// PriceHistory is the seed snapshot for one instrument (oldest point first).
type PriceHistory struct {
	Ticker  Instrument   `json:"ticker"`
	History []PricePoint `json:"history"`
}

// PriceUpdate is the payload of a price_update frame.
type PriceUpdate struct {
	TickerID  string  `json:"ticker_id"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// Point converts the update into a history point.
func (u PriceUpdate) Point() PricePoint {
	return PricePoint{Value: u.Price, Timestamp: u.Timestamp}
}

// FormatTimestamp renders t in the wire layout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a wire timestamp. Timestamps without a zone
// designator are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
