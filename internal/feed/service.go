package feed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/pricefeed/internal/model"
)

// Service answers ticker and history queries.
type Service struct {
	tickers TickerSource
	repo    Repository
}

// NewService creates a new Service.
func NewService(tickers TickerSource, repo Repository) *Service {
	return &Service{tickers: tickers, repo: repo}
}

// Tickers returns every instrument.
func (s *Service) Tickers() []model.Instrument {
	ts := s.tickers.Tickers()
	out := make([]model.Instrument, 0, len(ts))
	for _, t := range ts {
		out = append(out, toInstrument(t))
	}
	return out
}

// Exists reports whether id is a known ticker.
func (s *Service) Exists(id string) bool {
	_, ok := s.tickers.Ticker(id)
	return ok
}

// TickerHistory returns the instrument and up to limit of its most recent
// prices, oldest first.
func (s *Service) TickerHistory(ctx context.Context, id string, limit int) (*model.PriceHistory, error) {
	t, ok := s.tickers.Ticker(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, id)
	}

	prices, err := s.repo.History(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}

	points := make([]model.PricePoint, 0, len(prices))
	for _, p := range prices {
		points = append(points, model.PricePoint{
			Value:     Round(p.Value),
			Timestamp: model.FormatTimestamp(p.Timestamp),
		})
	}

	return &model.PriceHistory{
		Ticker:  toInstrument(t),
		History: points,
	}, nil
}

// Round rounds a price to cents.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func toInstrument(t Ticker) model.Instrument {
	return model.Instrument{
		ID:           t.ID,
		Name:         t.Name,
		CurrentPrice: Round(t.CurrentPrice),
		InitialPrice: Round(t.InitialPrice),
		CreatedAt:    model.FormatTimestamp(t.CreatedAt),
		UpdatedAt:    model.FormatTimestamp(t.UpdatedAt),
	}
}
